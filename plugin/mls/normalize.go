package mls

import (
	"fmt"
	"strconv"
	"strings"
)

// Field normalization follows a declared-mapping approach: for each canonical
// field, an ordered list of candidate source fields is tried and the first
// non-null match wins. Upstream schema drift stays confined to these tables.

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
	case []any:
		parts := []string{}
		for _, item := range v {
			if s := readString(item); s != nil {
				parts = append(parts, *s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		joined := strings.Join(parts, ", ")
		return &joined
	case map[string]any:
		for _, field := range []string{"label", "name", "value"} {
			if s := readString(v[field]); s != nil {
				return s
			}
		}
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

func normalizeStringArray(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		out := []string{}
		for _, item := range v {
			if s := readString(item); s != nil {
				out = append(out, *s)
			}
		}
		return out
	default:
		if s := readString(v); s != nil {
			return []string{*s}
		}
	}
	return nil
}

func normalizeImages(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []any:
		out := []string{}
		for _, item := range v {
			out = append(out, normalizeImages(item)...)
		}
		return out
	case map[string]any:
		if url := firstString(v, "url", "href", "src", "imageUrl", "mediaUrl", "thumbnail"); url != nil {
			return []string{*url}
		}
	}
	return nil
}

func formatAddressFromObject(value any) *string {
	record, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	if full := firstString(record, "full", "fullAddress", "address", "formatted"); full != nil {
		return full
	}

	line1 := firstString(record, "line1", "addressLine1", "streetAddress", "street", "street1")
	line2 := firstString(record, "line2", "addressLine2", "unit", "unitNumber")
	city := firstString(record, "city", "cityName")
	state := firstString(record, "state", "stateCode")
	postal := firstString(record, "postalCode", "zip")

	street := joinNonEmpty(" ", line1, line2)
	full := joinNonEmpty(", ", &street, city, state, postal)
	if full == "" {
		return nil
	}
	return &full
}

func joinNonEmpty(sep string, parts ...*string) string {
	out := []string{}
	for _, p := range parts {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return strings.Join(out, sep)
}

func formatAddress(raw map[string]any) string {
	addressLine := formatAddressFromObject(raw["address"])
	if addressLine == nil {
		addressLine = firstString(raw, "address", "addressLine1", "streetAddress")
	}
	if addressLine == nil {
		street := joinNonEmpty(" ",
			firstString(raw, "streetNumber"),
			firstString(raw, "streetName"),
			firstString(raw, "streetSuffix"),
			firstString(raw, "unitNumber"))
		if street != "" {
			addressLine = &street
		}
	}

	city := firstString(raw, "city", "cityName")
	state := firstString(raw, "state", "stateCode")
	postal := firstString(raw, "postalCode", "zip")
	return joinNonEmpty(", ", addressLine, city, state, postal)
}

func normalizeStatus(value any) *string {
	status := readString(value)
	if status == nil {
		return nil
	}
	mapped := *status
	switch strings.ToUpper(mapped) {
	case "A":
		mapped = "Active"
	case "U":
		mapped = "Under Contract"
	case "P":
		mapped = "Pending"
	case "C":
		mapped = "Closed"
	}
	return &mapped
}

// computeBaths prefers a direct total; otherwise full/half/three-quarter
// counts are combined with the usual 1 / 0.5 / 0.75 weights.
func computeBaths(raw map[string]any) *float64 {
	if direct := firstNumber(raw, "baths", "bathrooms", "bathroomsTotal", "bathroomsTotalInteger", "bathsTotal", "totalBathrooms"); direct != nil {
		return direct
	}

	full := firstNumber(raw, "bathroomsFull", "fullBathrooms")
	half := firstNumber(raw, "bathroomsHalf", "halfBathrooms")
	threeQuarter := firstNumber(raw, "bathroomsThreeQuarter", "threeQuarterBathrooms")
	if full == nil && half == nil && threeQuarter == nil {
		return nil
	}

	total := 0.0
	if full != nil {
		total += *full
	}
	if half != nil {
		total += *half * 0.5
	}
	if threeQuarter != nil {
		total += *threeQuarter * 0.75
	}
	return &total
}

func normalizeListingSummary(raw map[string]any) *ListingSummary {
	address := formatAddress(raw)
	if address == "" {
		address = "Unknown address"
	}

	id := firstString(raw, "mlsNumber", "mlsId", "listingId", "id", "_id")
	if id == nil {
		id = &address
	}

	images := normalizeImages(raw["images"])
	if images == nil {
		images = normalizeImages(raw["photos"])
	}
	if images == nil {
		if media, ok := raw["media"].(map[string]any); ok {
			images = normalizeImages(media["images"])
			if images == nil {
				images = normalizeImages(media["photos"])
			}
		} else {
			images = normalizeImages(raw["media"])
		}
	}
	if images == nil {
		images = []string{}
	}

	status := raw["status"]
	if status == nil {
		status = raw["listingStatus"]
	}

	return &ListingSummary{
		ID:           *id,
		Address:      address,
		City:         firstString(raw, "city", "cityName"),
		State:        firstString(raw, "state", "stateCode"),
		PostalCode:   firstString(raw, "postalCode", "zip"),
		Price:        firstNumber(raw, "price", "listPrice", "listingPrice", "askingPrice"),
		Beds:         firstNumber(raw, "beds", "bedrooms", "bedroomsTotal", "totalBedrooms", "bedsTotal"),
		Baths:        computeBaths(raw),
		Sqft:         firstNumber(raw, "sqft", "squareFeet", "livingArea", "livingAreaSquareFeet"),
		Status:       normalizeStatus(status),
		Neighborhood: firstString(raw, "neighborhood", "community"),
		Images:       images,
	}
}

func normalizeListingDetail(raw map[string]any) *ListingDetail {
	summary := normalizeListingSummary(raw)

	features := []string{}
	seen := map[string]bool{}
	for _, field := range []string{
		"features", "interiorFeatures", "exteriorFeatures", "appliances",
		"amenities", "communityFeatures", "parkingFeatures", "heating",
		"cooling", "fireplaceFeatures", "propertyFeatures",
	} {
		for _, f := range normalizeStringArray(raw[field]) {
			if f != "" && !seen[f] {
				seen[f] = true
				features = append(features, f)
			}
		}
	}

	return &ListingDetail{
		ListingSummary:  *summary,
		PropertyType:    firstString(raw, "propertyType", "propertyTypeName", "propertySubType", "propertySubTypeName"),
		PropertySubType: firstString(raw, "propertySubType", "propertySubTypeName"),
		YearBuilt:       firstNumber(raw, "yearBuilt", "yearBuiltApprox"),
		Parking:         firstString(raw, "parking", "parkingFeatures", "parkingType"),
		HOAFee:          firstNumber(raw, "hoaFees", "hoaFee", "associationFee", "associationFeeMonthly"),
		DaysOnMarket:    firstNumber(raw, "daysOnMarket", "dom"),
		LotSize:         firstNumber(raw, "lotSize", "lotSizeSquareFeet"),
		Description:     firstString(raw, "publicRemarks", "remarks", "description"),
		Features:        features,
	}
}

// FormatPrice renders a price for human-readable context blocks.
func FormatPrice(price float64) string {
	return "$" + groupThousands(fmt.Sprintf("%.0f", price))
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	return groupThousands(s[:len(s)-3]) + "," + s[len(s)-3:]
}
