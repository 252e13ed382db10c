// Package valuation is the client for the third-party property valuation
// provider. Valuation data is best-effort enrichment: every lookup degrades
// to nil instead of failing, so a provider outage never breaks a caller.
package valuation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PriceEvent is one entry of a property's price history.
type PriceEvent struct {
	Date  string   `json:"date"`
	Price float64  `json:"price"`
	Event *string  `json:"event,omitempty"`
}

// TaxRecord is one year of property tax.
type TaxRecord struct {
	Year float64 `json:"year"`
	Tax  float64 `json:"tax"`
}

// PropertyData is the normalized valuation payload.
type PropertyData struct {
	PropertyID     *string      `json:"propertyId"`
	Estimate       *float64     `json:"estimate"`
	RentEstimate   *float64     `json:"rentEstimate"`
	PriceHistory   []PriceEvent `json:"priceHistory,omitempty"`
	TaxHistory     []TaxRecord  `json:"taxHistory,omitempty"`
	HomeType       *string      `json:"homeType"`
	YearBuilt      *float64     `json:"yearBuilt"`
	LotSize        *float64     `json:"lotSize"`
	LivingArea     *float64     `json:"livingArea"`
	Bedrooms       *float64     `json:"bedrooms"`
	Bathrooms      *float64     `json:"bathrooms"`
	Description    *string      `json:"description"`
	Images         []string     `json:"images,omitempty"`
	Neighborhood   *string      `json:"neighborhood"`
	SchoolDistrict *string      `json:"schoolDistrict"`
	WalkScore      *float64     `json:"walkScore"`
	TransitScore   *float64     `json:"transitScore"`
}

// Config holds the valuation provider configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client talks to a hasdata-style valuation API. A client with no API key is
// valid and simply returns nil for every lookup.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a valuation client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hasdata.com/v1/zillow"
	}
	return &Client{
		config:     cfg,
		httpClient: http.DefaultClient,
	}
}

// Enabled reports whether the provider is configured.
func (c *Client) Enabled() bool {
	return c.config.APIKey != ""
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) *PropertyData {
	if !c.Enabled() {
		slog.Warn("valuation API key not set, skipping lookup")
		return nil
	}

	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Warn("valuation request build failed", "error", err)
		return nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("valuation fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("valuation API returned non-OK status", "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		slog.Warn("valuation response read failed", "error", err)
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.Warn("valuation payload malformed", "error", err)
		return nil
	}
	return normalizePropertyData(raw)
}

// GetByAddress looks up valuation data for an address. Returns nil when the
// provider is unconfigured, unavailable, or returns garbage.
func (c *Client) GetByAddress(ctx context.Context, address, city, state string) *PropertyData {
	query := url.Values{}
	query.Set("address", address)
	if city != "" {
		query.Set("city", city)
	}
	if state == "" {
		state = "IL"
	}
	query.Set("state", state)
	return c.fetch(ctx, "/property", query)
}

// GetByPropertyID looks up valuation data by provider property id. Same
// degradation rules as GetByAddress.
func (c *Client) GetByPropertyID(ctx context.Context, propertyID string) *PropertyData {
	return c.fetch(ctx, "/property/"+url.PathEscape(propertyID), nil)
}

func readString(value any) *string {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	}
	return nil
}

func readNumber(values ...any) *float64 {
	for _, value := range values {
		switch v := value.(type) {
		case float64:
			return &v
		case string:
			if num, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &num
			}
		}
	}
	return nil
}

func firstString(record map[string]any, candidates ...string) *string {
	for _, field := range candidates {
		if s := readString(record[field]); s != nil {
			return s
		}
	}
	return nil
}

func firstNumber(record map[string]any, candidates ...string) *float64 {
	values := make([]any, 0, len(candidates))
	for _, field := range candidates {
		values = append(values, record[field])
	}
	return readNumber(values...)
}

func normalizePropertyData(raw map[string]any) *PropertyData {
	data := &PropertyData{
		PropertyID:     firstString(raw, "zpid", "zillowId", "propertyId"),
		Estimate:       firstNumber(raw, "zestimate", "zestimateAmount", "estimatedValue"),
		RentEstimate:   firstNumber(raw, "rentZestimate", "rentEstimate", "estimatedRent"),
		HomeType:       firstString(raw, "homeType", "propertyType", "type"),
		YearBuilt:      firstNumber(raw, "yearBuilt"),
		LotSize:        firstNumber(raw, "lotSize", "lotSizeSquareFeet"),
		LivingArea:     firstNumber(raw, "livingArea", "squareFeet", "livingAreaSquareFeet"),
		Bedrooms:       firstNumber(raw, "bedrooms", "beds"),
		Bathrooms:      firstNumber(raw, "bathrooms", "baths"),
		Description:    firstString(raw, "description", "remarks", "publicRemarks"),
		Neighborhood:   firstString(raw, "neighborhood", "community"),
		SchoolDistrict: firstString(raw, "schoolDistrict", "schools"),
		WalkScore:      firstNumber(raw, "walkScore", "walkscore"),
		TransitScore:   firstNumber(raw, "transitScore", "transitscore"),
	}

	if history, ok := raw["priceHistory"].([]any); ok {
		for _, item := range history {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			date := firstString(record, "date", "eventDate")
			price := firstNumber(record, "price", "value", "amount")
			if date == nil || price == nil {
				continue
			}
			data.PriceHistory = append(data.PriceHistory, PriceEvent{
				Date:  *date,
				Price: *price,
				Event: firstString(record, "event", "type"),
			})
		}
	}

	if history, ok := raw["taxHistory"].([]any); ok {
		for _, item := range history {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			year := firstNumber(record, "year")
			tax := firstNumber(record, "tax", "amount", "value")
			if year == nil || tax == nil {
				continue
			}
			data.TaxHistory = append(data.TaxHistory, TaxRecord{Year: *year, Tax: *tax})
		}
	}

	images := raw["images"]
	if images == nil {
		images = raw["photos"]
	}
	if arr, ok := images.([]any); ok {
		for _, item := range arr {
			if s := readString(item); s != nil {
				data.Images = append(data.Images, *s)
			}
		}
	}
	return data
}
