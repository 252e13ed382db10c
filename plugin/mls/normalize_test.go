package mls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSummaryFieldPrecedence(t *testing.T) {
	raw := map[string]any{
		"mlsNumber":    "MRED-12345678",
		"id":           "ignored-when-mlsNumber-present",
		"address":      map[string]any{"line1": "2330 N Clark St", "unit": "#4B", "city": "Chicago", "state": "IL", "postalCode": "60614"},
		"listPrice":    float64(525000),
		"bedroomsTotal": float64(2),
		"squareFeet":   "1150",
		"status":       "A",
		"community":    "Lincoln Park",
	}

	s := normalizeListingSummary(raw)
	assert.Equal(t, "MRED-12345678", s.ID)
	assert.Equal(t, "2330 N Clark St #4B, Chicago, IL, 60614", s.Address)
	require.NotNil(t, s.Price)
	assert.Equal(t, 525000.0, *s.Price)
	require.NotNil(t, s.Beds)
	assert.Equal(t, 2.0, *s.Beds)
	require.NotNil(t, s.Sqft)
	assert.Equal(t, 1150.0, *s.Sqft)
	require.NotNil(t, s.Status)
	assert.Equal(t, "Active", *s.Status)
	require.NotNil(t, s.Neighborhood)
	assert.Equal(t, "Lincoln Park", *s.Neighborhood)
}

func TestNormalizeSummaryFallsBackToAddressAsID(t *testing.T) {
	s := normalizeListingSummary(map[string]any{"streetAddress": "100 Main St"})
	assert.Equal(t, "100 Main St", s.ID)
	assert.Equal(t, "100 Main St", s.Address)

	empty := normalizeListingSummary(map[string]any{})
	assert.Equal(t, "Unknown address", empty.Address)
	assert.Equal(t, "Unknown address", empty.ID)
	assert.NotNil(t, empty.Images)
}

func TestNormalizeStatusMapping(t *testing.T) {
	cases := map[string]string{
		"A": "Active", "a": "Active",
		"U": "Under Contract",
		"P": "Pending",
		"C": "Closed",
		"Active Under Contract": "Active Under Contract",
	}
	for in, want := range cases {
		got := normalizeStatus(in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got)
	}
	assert.Nil(t, normalizeStatus(nil))
}

func TestComputeBaths(t *testing.T) {
	direct := computeBaths(map[string]any{"bathroomsTotal": float64(2.5), "bathroomsFull": float64(9)})
	require.NotNil(t, direct)
	assert.Equal(t, 2.5, *direct)

	composed := computeBaths(map[string]any{
		"bathroomsFull":         float64(2),
		"bathroomsHalf":         float64(1),
		"bathroomsThreeQuarter": float64(1),
	})
	require.NotNil(t, composed)
	assert.Equal(t, 3.25, *composed)

	assert.Nil(t, computeBaths(map[string]any{}))
}

func TestNormalizeImagesShapes(t *testing.T) {
	fromStrings := normalizeImages([]any{"a.jpg", map[string]any{"url": "b.jpg"}, map[string]any{"mediaUrl": "c.jpg"}})
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, fromStrings)

	nested := normalizeListingSummary(map[string]any{
		"media": map[string]any{"photos": []any{map[string]any{"href": "x.jpg"}}},
	})
	assert.Equal(t, []string{"x.jpg"}, nested.Images)
}

func TestNormalizeDetailDedupesFeatures(t *testing.T) {
	d := normalizeListingDetail(map[string]any{
		"features":         []any{"Hardwood floors", "In-unit laundry"},
		"interiorFeatures": []any{"Hardwood floors", "Fireplace"},
		"heating":          "Forced air",
		"publicRemarks":    "Bright corner unit.",
		"yearBuilt":        float64(1928),
	})
	assert.Equal(t, []string{"Hardwood floors", "In-unit laundry", "Fireplace", "Forced air"}, d.Features)
	require.NotNil(t, d.Description)
	assert.Equal(t, "Bright corner unit.", *d.Description)
	require.NotNil(t, d.YearBuilt)
	assert.Equal(t, 1928.0, *d.YearBuilt)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$525,000", FormatPrice(525000))
	assert.Equal(t, "$1,250,000", FormatPrice(1250000))
	assert.Equal(t, "$900", FormatPrice(900))
}
