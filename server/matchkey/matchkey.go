// Package matchkey derives the canonical keys that associate realtor notes
// with listings, buildings and neighborhoods.
//
// A canonical key has the form "<namespace>:<slug>" where the namespace is one
// of "mred" (listing), "building" or "neighborhood". Keys are derived, never
// stored independently: they are recomputed from raw identifiers on every
// lookup and compared for equality.
package matchkey

import (
	"regexp"
	"strings"
)

const (
	// NamespaceListing prefixes keys derived from MLS listing numbers.
	NamespaceListing = "mred"
	// NamespaceBuilding prefixes keys derived from street addresses.
	NamespaceBuilding = "building"
	// NamespaceNeighborhood prefixes keys derived from neighborhood names.
	NamespaceNeighborhood = "neighborhood"
)

var (
	unitPattern     = regexp.MustCompile(`(?i)\b(unit|apt|apartment|suite|ste|floor|fl)\b.*$`)
	apostrophes     = regexp.MustCompile("['`]")
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

// stripUnit removes the unit designation from an address so that two units of
// the same building collapse to one key. A "#" truncates at its first
// occurrence; otherwise everything from the first whole-word unit indicator
// through the end of the string is dropped.
func stripUnit(address string) string {
	if idx := strings.Index(address, "#"); idx >= 0 {
		return address[:idx]
	}
	return unitPattern.ReplaceAllString(address, "")
}

// slugify lower-cases the input, strips apostrophes, and replaces every run of
// non-alphanumeric characters with a single separator. Re-slugifying an
// already produced slug is a no-op.
func slugify(input string, sep string) string {
	s := strings.ToLower(input)
	s = apostrophes.ReplaceAllString(s, "")
	s = nonAlphanumeric.ReplaceAllString(s, sep)
	return strings.Trim(s, sep)
}

// ToListingKey derives the canonical key for an MLS listing number.
func ToListingKey(listingID string) string {
	return NamespaceListing + ":" + slugify(listingID, "-")
}

// ToBuildingKey derives the canonical key for a building address. Addresses
// differing only by unit suffix produce the same key.
func ToBuildingKey(address string) string {
	return NamespaceBuilding + ":" + slugify(stripUnit(address), "_")
}

// ToNeighborhoodKey derives the canonical key for a neighborhood name.
func ToNeighborhoodKey(name string) string {
	return NamespaceNeighborhood + ":" + slugify(name, "-")
}

// Input carries the optional raw identifiers a request may provide.
type Input struct {
	ListingID       string
	BuildingAddress string
	Neighborhood    string
}

// BuildMatchKeys returns the keys for every non-empty input field, preserving
// the order listing, building, neighborhood. Whitespace-only identifiers are
// treated as absent so no degenerate "namespace:" keys are derived.
func BuildMatchKeys(input Input) []string {
	keys := []string{}
	if strings.TrimSpace(input.ListingID) != "" {
		keys = append(keys, ToListingKey(input.ListingID))
	}
	if strings.TrimSpace(input.BuildingAddress) != "" {
		keys = append(keys, ToBuildingKey(input.BuildingAddress))
	}
	if strings.TrimSpace(input.Neighborhood) != "" {
		keys = append(keys, ToNeighborhoodKey(input.Neighborhood))
	}
	return keys
}
