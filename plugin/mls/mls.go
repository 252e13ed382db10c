// Package mls is the client for the external MLS listing provider. Upstream
// payloads vary in field naming; normalization to the canonical listing
// schema happens here, at the boundary, and nowhere else.
package mls

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	svcerr "github.com/dwellify/dwellify/internal/errors"
)

// ListingSummary is the canonical projection of a search result.
type ListingSummary struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	City         *string  `json:"city"`
	State        *string  `json:"state"`
	PostalCode   *string  `json:"postalCode"`
	Price        *float64 `json:"price"`
	Beds         *float64 `json:"beds"`
	Baths        *float64 `json:"baths"`
	Sqft         *float64 `json:"sqft"`
	Status       *string  `json:"status"`
	Neighborhood *string  `json:"neighborhood"`
	Images       []string `json:"images"`
}

// ListingDetail extends the summary with the long-form fields.
type ListingDetail struct {
	ListingSummary

	PropertyType    *string  `json:"propertyType"`
	PropertySubType *string  `json:"propertySubType"`
	YearBuilt       *float64 `json:"yearBuilt"`
	Parking         *string  `json:"parking"`
	HOAFee          *float64 `json:"hoaFee"`
	DaysOnMarket    *float64 `json:"daysOnMarket"`
	LotSize         *float64 `json:"lotSize"`
	Description     *string  `json:"description"`
	Features        []string `json:"features"`
}

// SearchParams are the supported listing search filters.
type SearchParams struct {
	Query    string
	City     string
	MinPrice string
	MaxPrice string
	MinBeds  string
	MaxBeds  string
	Status   string
}

// SearchResult is a page of normalized listings.
type SearchResult struct {
	Listings []*ListingSummary `json:"listings"`
	Total    *int64            `json:"total"`
}

// Provider is the listing-search capability the rest of the system depends
// on. The HTTP client and the demo fixture provider both satisfy it.
type Provider interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	GetByID(ctx context.Context, listingID string) (*ListingSummary, error)
	GetDetailByID(ctx context.Context, listingID string) (*ListingDetail, error)
}

// Config holds the MLS provider configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client talks to a repliers-style listing API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a listing provider client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("MLS API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.repliers.io"
	}
	return &Client{
		config:     cfg,
		httpClient: http.DefaultClient,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build MLS request")
	}
	req.Header.Set("REPLIERS-API-KEY", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, svcerr.Upstream("MLS request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, svcerr.Upstream("failed to read MLS response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, svcerr.Upstream(fmt.Sprintf("MLS returned status %d", resp.StatusCode), errors.Errorf("%s", truncate(string(body), 500)))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Search queries listings and normalizes the result page.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	query := url.Values{}
	if params.Query != "" {
		query.Set("text", params.Query)
	}
	if params.City != "" {
		query.Set("city", params.City)
	}
	if params.MinPrice != "" {
		query.Set("minPrice", params.MinPrice)
	}
	if params.MaxPrice != "" {
		query.Set("maxPrice", params.MaxPrice)
	}
	if params.MinBeds != "" {
		query.Set("minBedrooms", params.MinBeds)
	}
	if params.MaxBeds != "" {
		query.Set("maxBedrooms", params.MaxBeds)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}

	body, err := c.get(ctx, "/listings", query)
	if err != nil {
		return nil, err
	}

	// The provider returns either a bare array or an envelope whose listing
	// array key has drifted over API versions.
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, svcerr.Upstream("malformed MLS search payload", err)
	}

	result := &SearchResult{Listings: []*ListingSummary{}}
	var rawListings []any
	switch v := payload.(type) {
	case []any:
		rawListings = v
	case map[string]any:
		for _, field := range []string{"listings", "results"} {
			if arr, ok := v[field].([]any); ok {
				rawListings = arr
				break
			}
		}
		if total, ok := v["total"].(float64); ok {
			t := int64(total)
			result.Total = &t
		}
	}

	for _, item := range rawListings {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		result.Listings = append(result.Listings, normalizeListingSummary(record))
	}
	return result, nil
}

// GetByID fetches and normalizes one listing.
func (c *Client) GetByID(ctx context.Context, listingID string) (*ListingSummary, error) {
	body, err := c.get(ctx, "/listings/"+url.PathEscape(listingID), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, svcerr.Upstream("malformed MLS listing payload", err)
	}
	return normalizeListingSummary(raw), nil
}

// GetDetailByID fetches and normalizes one listing with long-form fields.
func (c *Client) GetDetailByID(ctx context.Context, listingID string) (*ListingDetail, error) {
	body, err := c.get(ctx, "/listings/"+url.PathEscape(listingID), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, svcerr.Upstream("malformed MLS listing payload", err)
	}
	return normalizeListingDetail(raw), nil
}
