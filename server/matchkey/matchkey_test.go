package matchkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToBuildingKeyStripsUnits(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"hash unit", "2330 N Clark St #4B", "building:2330_n_clark_st"},
		{"unit word", "2330 N Clark St Unit 4B", "building:2330_n_clark_st"},
		{"apt", "123 Main St Apt 4B, Chicago, IL 60614", "building:123_main_st"},
		{"apartment", "123 Main St Apartment 12", "building:123_main_st"},
		{"suite", "500 W Madison St Suite 300", "building:500_w_madison_st"},
		{"ste", "500 W Madison St Ste 300", "building:500_w_madison_st"},
		{"floor", "1 N State St Floor 9", "building:1_n_state_st"},
		{"fl", "1 N State St Fl 9", "building:1_n_state_st"},
		{"no unit", "1060 W Addison St", "building:1060_w_addison_st"},
		{"case insensitive indicator", "77 E Elm St UNIT 2", "building:77_e_elm_st"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToBuildingKey(tt.address))
		})
	}
}

func TestUnitSuffixNeverAffectsBuildingKey(t *testing.T) {
	addresses := []string{
		"2330 N Clark St",
		"123 Main St, Chicago, IL 60614",
		"500 W Superior St",
	}
	for _, a := range addresses {
		assert.Equal(t, ToBuildingKey(a), ToBuildingKey(a+" Unit 5"), "address %q", a)
		assert.Equal(t, ToBuildingKey(a), ToBuildingKey(a+" #5"), "address %q", a)
	}
}

func TestStripUnitCutsAtOriginalHashPosition(t *testing.T) {
	// Lower-casing can change the byte length of non-ASCII letters ("İ"
	// lower-cases to two runes), so the "#" must be located in the original
	// string, not a folded copy.
	assert.Equal(t, "İİ Plaza ", stripUnit("İİ Plaza #21"))
	assert.Equal(t, ToBuildingKey("İİ Plaza"), ToBuildingKey("İİ Plaza #21"))
}

func TestSlugifyIdempotent(t *testing.T) {
	// Re-slugifying an already produced slug must be a no-op.
	slug := slugify("Lincoln Park / DePaul", "-")
	assert.Equal(t, slug, slugify(slug, "-"))

	slug = slugify("2330 N Clark St", "_")
	assert.Equal(t, slug, slugify(slug, "_"))
}

func TestToNeighborhoodKey(t *testing.T) {
	assert.Equal(t, "neighborhood:wicker-park", ToNeighborhoodKey("Wicker Park"))
	assert.Equal(t, "neighborhood:wicker-park", ToNeighborhoodKey("wicker park"))
	assert.Equal(t, "neighborhood:wicker-park", ToNeighborhoodKey("  Wicker   Park "))
	// Apostrophes are removed, not replaced with a separator.
	assert.Equal(t, "neighborhood:printers-row", ToNeighborhoodKey("Printer's Row"))
}

func TestToListingKey(t *testing.T) {
	assert.Equal(t, "mred:mred-11928309", ToListingKey("MRED 11928309"))
	assert.Equal(t, "mred:11928309", ToListingKey("11928309"))
}

func TestBuildMatchKeys(t *testing.T) {
	keys := BuildMatchKeys(Input{
		ListingID:       "11928309",
		BuildingAddress: "2330 N Clark St #4B",
		Neighborhood:    "Lincoln Park",
	})
	assert.Equal(t, []string{
		"mred:11928309",
		"building:2330_n_clark_st",
		"neighborhood:lincoln-park",
	}, keys)
}

func TestBuildMatchKeysSkipsEmptyFields(t *testing.T) {
	assert.Empty(t, BuildMatchKeys(Input{}))
	assert.Empty(t, BuildMatchKeys(Input{ListingID: "   "}))

	keys := BuildMatchKeys(Input{Neighborhood: "Logan Square"})
	assert.Equal(t, []string{"neighborhood:logan-square"}, keys)
}
