package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/internal/profile"
	"github.com/dwellify/dwellify/server/matchkey"
	"github.com/dwellify/dwellify/store"
)

func newTestDriver(t *testing.T) store.Driver {
	t.Helper()
	prof := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "notes.db"),
	}
	driver, err := NewDB(prof)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, store.New(driver, prof).Migrate(context.Background()))
	return driver
}

func keyPtr(key string) *string { return &key }

// seedNotes inserts a fixed cross-tenant corpus with explicit timestamps so
// recency ordering is deterministic.
func seedNotes(t *testing.T, driver store.Driver) {
	t.Helper()
	ctx := context.Background()
	notes := []*store.Note{
		{
			ID: "g1", OrgID: "org-a", Scope: store.GlobalScope,
			Content: "Always check HOA minutes", Embedding: []float32{1, 0},
			CreatedTs: 1, UpdatedTs: 1,
		},
		{
			ID: "l1", OrgID: "org-a", Scope: store.ListingScope,
			Content:    "Seller is motivated",
			ListingKey: keyPtr(matchkey.ToListingKey("11928309")),
			Embedding:  []float32{0.9, 0.1},
			CreatedTs:  2, UpdatedTs: 2,
		},
		{
			ID: "b1", OrgID: "org-a", Scope: store.BuildingScope,
			Content:     "Elevator replaced in 2024",
			BuildingKey: keyPtr(matchkey.ToBuildingKey("2330 N Clark St #12")),
			CreatedTs:   3, UpdatedTs: 3,
		},
		{
			ID: "n1", OrgID: "org-a", Scope: store.NeighborhoodScope,
			Content:         "Street parking is tight on weekends",
			NeighborhoodKey: keyPtr(matchkey.ToNeighborhoodKey("Lincoln Park")),
			Embedding:       []float32{0, 1},
			CreatedTs:       4, UpdatedTs: 4,
		},
		{
			ID: "x1", OrgID: "org-b", Scope: store.GlobalScope,
			Content:   "Other tenant's note",
			CreatedTs: 5, UpdatedTs: 5,
		},
	}
	for _, note := range notes {
		_, err := driver.CreateNote(ctx, note)
		require.NoError(t, err, "note %s", note.ID)
	}
}

func noteIDs(notes []*store.Note) []string {
	ids := make([]string, 0, len(notes))
	for _, note := range notes {
		ids = append(ids, note.ID)
	}
	return ids
}

func TestListNotesByKeysRoundTrip(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)
	ctx := context.Background()

	// A listing key matches its note plus globals, most recent first, and
	// never the building or neighborhood notes.
	notes, err := driver.ListNotesByKeys(ctx, &store.FindNotesByKeys{
		OrgID: "org-a",
		Keys:  []string{matchkey.ToListingKey("11928309")},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "g1"}, noteIDs(notes))

	// A different unit of the same building derives the same key, so the
	// building note written under "#12" is found via "Apt 4B".
	notes, err = driver.ListNotesByKeys(ctx, &store.FindNotesByKeys{
		OrgID: "org-a",
		Keys:  matchkey.BuildMatchKeys(matchkey.Input{BuildingAddress: "2330 N Clark St Apt 4B"}),
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "g1"}, noteIDs(notes))
}

func TestListNotesByKeysEmptyKeysReturnsGlobalsOnly(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)

	notes, err := driver.ListNotesByKeys(context.Background(), &store.FindNotesByKeys{
		OrgID: "org-a",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, noteIDs(notes))
}

func TestListNotesByKeysTenantIsolation(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)
	ctx := context.Background()

	notes, err := driver.ListNotesByKeys(ctx, &store.FindNotesByKeys{OrgID: "org-b", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, noteIDs(notes))

	notes, err = driver.ListNotesByKeys(ctx, &store.FindNotesByKeys{OrgID: "org-c", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestVectorSearchNotesRanking(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)
	ctx := context.Background()

	results, err := driver.VectorSearchNotes(ctx, &store.VectorSearchOptions{
		OrgID:  "org-a",
		Vector: []float32{1, 0},
		Limit:  10,
	})
	require.NoError(t, err)

	// b1 has no embedding and is never a candidate; the rest come back in
	// descending similarity.
	require.Len(t, results, 3)
	assert.Equal(t, "g1", results[0].Note.ID)
	assert.Equal(t, "l1", results[1].Note.ID)
	assert.Equal(t, "n1", results[2].Note.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestVectorSearchNotesKeyFilter(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)

	results, err := driver.VectorSearchNotes(context.Background(), &store.VectorSearchOptions{
		OrgID:  "org-a",
		Vector: []float32{1, 0},
		Keys:   []string{matchkey.ToListingKey("11928309")},
		Limit:  10,
	})
	require.NoError(t, err)

	// Candidates are the keyed note plus globals; the neighborhood note is
	// excluded despite having an embedding.
	assert.Equal(t, []string{"g1", "l1"}, func() []string {
		ids := []string{}
		for _, r := range results {
			ids = append(ids, r.Note.ID)
		}
		return ids
	}())
}

func TestFindNotesWithoutEmbeddingAndBackfill(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)
	ctx := context.Background()

	// An empty org scans all tenants, matching the backfill runner's view.
	pending, err := driver.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "x1"}, noteIDs(pending))

	require.NoError(t, driver.UpdateNoteEmbedding(ctx, "b1", "org-a", []float32{0.5, 0.5}))

	pending, err = driver.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, noteIDs(pending))

	// The freshly indexed note now surfaces in vector search.
	results, err := driver.VectorSearchNotes(ctx, &store.VectorSearchOptions{
		OrgID:  "org-a",
		Vector: []float32{0.5, 0.5},
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].Note.ID)
}

func TestDeleteNoteMissingReportsNotFound(t *testing.T) {
	driver := newTestDriver(t)
	seedNotes(t, driver)

	err := driver.DeleteNote(context.Background(), &store.DeleteNote{ID: "nope", OrgID: "org-a"})
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeNotFound))

	// Deleting under the wrong tenant is also not-found, not a cross-tenant
	// delete.
	err = driver.DeleteNote(context.Background(), &store.DeleteNote{ID: "x1", OrgID: "org-a"})
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeNotFound))
}
