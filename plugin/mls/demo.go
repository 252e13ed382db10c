package mls

import (
	"context"
	"strconv"
	"strings"

	svcerr "github.com/dwellify/dwellify/internal/errors"
)

// DemoProvider serves a small fixed set of Chicago listings so the system
// runs end to end without MLS credentials. It satisfies Provider.
type DemoProvider struct {
	listings []*ListingDetail
}

// NewDemoProvider creates a fixture-backed listing provider.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{listings: demoListings()}
}

func demoListing(id, address, neighborhood string, price, beds, baths, sqft float64, status string, features []string) *ListingDetail {
	return &ListingDetail{
		ListingSummary: ListingSummary{
			ID:           id,
			Address:      address,
			City:         ptr("Chicago"),
			State:        ptr("IL"),
			Price:        &price,
			Beds:         &beds,
			Baths:        &baths,
			Sqft:         &sqft,
			Status:       &status,
			Neighborhood: &neighborhood,
			Images:       []string{},
		},
		Features: features,
	}
}

func ptr[T any](v T) *T { return &v }

func demoListings() []*ListingDetail {
	return []*ListingDetail{
		demoListing("CHI-1001", "233 W Lake St #1205", "Loop", 625000, 2, 2, 1180, "Active",
			[]string{"Walk to CTA", "Great natural light", "Gym + doorman"}),
		demoListing("CHI-1002", "1430 N Dearborn St #9A", "Gold Coast", 749000, 2, 2, 1320, "Active",
			[]string{"Classic building", "Quiet north-facing", "Parking may be waitlisted"}),
		demoListing("CHI-1003", "1722 W Division St #3", "Wicker Park", 579000, 3, 2, 1450, "Active",
			[]string{"Near Blue Line", "Top-floor", "Good nightlife access"}),
		demoListing("CHI-1004", "454 W Briar Pl #4E", "Lakeview", 410000, 2, 1, 980, "Pending",
			[]string{"Near lakefront", "Older HVAC", "Strong resale demand"}),
	}
}

func (p *DemoProvider) find(listingID string) *ListingDetail {
	for _, l := range p.listings {
		if strings.EqualFold(l.ID, listingID) {
			return l
		}
	}
	return nil
}

// Search filters the fixtures by the supported params. Text queries match
// address, neighborhood and features, case-insensitively.
func (p *DemoProvider) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	out := []*ListingSummary{}
	for _, l := range p.listings {
		if !demoMatches(l, params) {
			continue
		}
		summary := l.ListingSummary
		out = append(out, &summary)
	}
	total := int64(len(out))
	return &SearchResult{Listings: out, Total: &total}, nil
}

func demoMatches(l *ListingDetail, params SearchParams) bool {
	if params.Query != "" {
		q := strings.ToLower(params.Query)
		haystack := strings.ToLower(l.Address + " " + deref(l.Neighborhood) + " " + strings.Join(l.Features, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	if params.City != "" && !strings.EqualFold(params.City, deref(l.City)) {
		return false
	}
	if params.Status != "" && !strings.EqualFold(params.Status, deref(l.Status)) {
		return false
	}
	if min, ok := parseDemoNumber(params.MinPrice); ok && (l.Price == nil || *l.Price < min) {
		return false
	}
	if max, ok := parseDemoNumber(params.MaxPrice); ok && (l.Price == nil || *l.Price > max) {
		return false
	}
	if min, ok := parseDemoNumber(params.MinBeds); ok && (l.Beds == nil || *l.Beds < min) {
		return false
	}
	if max, ok := parseDemoNumber(params.MaxBeds); ok && (l.Beds == nil || *l.Beds > max) {
		return false
	}
	return true
}

func parseDemoNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetByID returns the fixture with the given id.
func (p *DemoProvider) GetByID(ctx context.Context, listingID string) (*ListingSummary, error) {
	l := p.find(listingID)
	if l == nil {
		return nil, svcerr.NotFound("listing %s not found", listingID)
	}
	summary := l.ListingSummary
	return &summary, nil
}

// GetDetailByID returns the fixture with the given id, long form.
func (p *DemoProvider) GetDetailByID(ctx context.Context, listingID string) (*ListingDetail, error) {
	l := p.find(listingID)
	if l == nil {
		return nil, svcerr.NotFound("listing %s not found", listingID)
	}
	detail := *l
	return &detail, nil
}
