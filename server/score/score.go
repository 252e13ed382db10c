// Package score ranks listings against buyer preferences. Scoring is
// deterministic and every point awarded or deducted is explained, so the
// result can be shown to a client as-is.
package score

import (
	"sort"
	"strings"

	"github.com/dwellify/dwellify/plugin/mls"
)

// Prefs are the buyer preferences a listing is scored against.
type Prefs struct {
	MaxPrice      *float64 `json:"maxPrice,omitempty"`
	MinBeds       *float64 `json:"minBeds,omitempty"`
	Neighborhoods []string `json:"neighborhoods,omitempty"`
}

// Result pairs a listing with its score and the reasons behind it.
type Result struct {
	Listing *mls.ListingSummary `json:"listing"`
	Score   int                 `json:"score"`
	Reasons []string            `json:"reasons"`
}

// Score evaluates one listing against prefs.
func Score(l *mls.ListingSummary, prefs Prefs) (int, []string) {
	score := 0
	reasons := []string{}

	if prefs.MaxPrice != nil && l.Price != nil {
		if *l.Price <= *prefs.MaxPrice {
			score += 40
			reasons = append(reasons, "Under max price ("+mls.FormatPrice(*prefs.MaxPrice)+")")
		} else {
			score -= 20
			reasons = append(reasons, "Over max price by "+mls.FormatPrice(*l.Price-*prefs.MaxPrice))
		}
	}

	if prefs.MinBeds != nil && l.Beds != nil {
		if *l.Beds >= *prefs.MinBeds {
			score += 25
			reasons = append(reasons, formatBeds(*l.Beds)+" beds meets minimum ("+formatBeds(*prefs.MinBeds)+")")
		} else {
			score -= 15
			reasons = append(reasons, formatBeds(*l.Beds)+" beds below minimum ("+formatBeds(*prefs.MinBeds)+")")
		}
	}

	if len(prefs.Neighborhoods) > 0 {
		if l.Neighborhood != nil && containsFold(prefs.Neighborhoods, *l.Neighborhood) {
			score += 20
			reasons = append(reasons, "In preferred neighborhood ("+*l.Neighborhood+")")
		} else {
			score -= 5
			reasons = append(reasons, "Not in preferred neighborhoods")
		}
	}

	if l.Status != nil && *l.Status == "Active" {
		score += 5
	}
	return score, reasons
}

// Rank scores every listing and returns them in descending score order.
// Ties keep the input order.
func Rank(listings []*mls.ListingSummary, prefs Prefs) []*Result {
	results := make([]*Result, 0, len(listings))
	for _, l := range listings {
		s, reasons := Score(l, prefs)
		results = append(results, &Result{Listing: l, Score: s, Reasons: reasons})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func formatBeds(n float64) string {
	s := mls.FormatPrice(n)
	return strings.TrimPrefix(s, "$")
}
