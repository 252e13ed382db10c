package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	storeerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/matchkey"
)

// NoteScope is the applicability tier of a note.
type NoteScope string

const (
	// GlobalScope notes apply everywhere and match every lookup.
	GlobalScope NoteScope = "global"
	// ListingScope notes are pinned to a single MLS listing.
	ListingScope NoteScope = "listing"
	// BuildingScope notes are pinned to a building address.
	BuildingScope NoteScope = "building"
	// NeighborhoodScope notes are pinned to a neighborhood.
	NeighborhoodScope NoteScope = "neighborhood"
)

// Validate reports whether the scope is one of the known tiers.
func (s NoteScope) Validate() bool {
	switch s {
	case GlobalScope, ListingScope, BuildingScope, NeighborhoodScope:
		return true
	}
	return false
}

// Note is a realtor-authored annotation layered onto MLS data.
//
// Invariant: for non-global scopes exactly one key field is populated and it
// matches the scope; global notes have all three key fields nil.
type Note struct {
	ID        string
	OrgID     string
	CreatedBy string
	Scope     NoteScope
	Content   string
	Tags      []string

	ListingKey      *string
	BuildingKey     *string
	NeighborhoodKey *string

	// Embedding is nil until computed. It goes semantically stale whenever
	// Content changes; the caller supplies a fresh vector on update. Drivers
	// write this column but never load it back on reads; HasEmbedding carries
	// the presence bit instead.
	Embedding    []float32
	HasEmbedding bool

	CreatedTs int64
	UpdatedTs int64
}

// FindNote is the find condition for notes.
type FindNote struct {
	ID    *string
	OrgID string
	Limit *int
}

// FindNotesByKeys is the condition for scoped (exact key) retrieval. A note
// matches if its scope is global, or any of its key fields is in Keys.
type FindNotesByKeys struct {
	OrgID string
	Keys  []string
	Limit int
}

// UpdateNote replaces the mutable fields of a note. Matches the admin edit
// form: scope, content, tags and keys are always written together.
type UpdateNote struct {
	ID    string
	OrgID string

	Scope   NoteScope
	Content string
	Tags    []string

	ListingKey      *string
	BuildingKey     *string
	NeighborhoodKey *string

	// Embedding freshly computed from the new content.
	Embedding []float32

	UpdatedTs int64
}

// DeleteNote is the delete condition for a note.
type DeleteNote struct {
	ID    string
	OrgID string
}

// NoteWithScore is a semantic search result.
type NoteWithScore struct {
	Note  *Note
	Score float32 // cosine similarity, higher is more similar
}

// VectorSearchOptions are the options for semantic note search.
type VectorSearchOptions struct {
	OrgID string
	// Vector is the query embedding.
	Vector []float32
	// Keys optionally restricts candidates to notes whose key fields intersect
	// Keys, or which are global-scope. Empty means unrestricted.
	Keys []string
	// Limit is the number of results to return, default 6.
	Limit int
}

// FindNotesWithoutEmbedding finds notes that have not been indexed yet.
// An empty OrgID scans all tenants; only the backfill runner does that.
type FindNotesWithoutEmbedding struct {
	OrgID string
	Limit int
}

func validateNoteShape(scope NoteScope, content string, listingKey, buildingKey, neighborhoodKey *string) error {
	if !scope.Validate() {
		return storeerr.InvalidArgument("invalid scope %q", scope)
	}
	if strings.TrimSpace(content) == "" {
		return storeerr.InvalidArgument("content is required")
	}

	hasListing := listingKey != nil && *listingKey != ""
	hasBuilding := buildingKey != nil && *buildingKey != ""
	hasNeighborhood := neighborhoodKey != nil && *neighborhoodKey != ""

	switch scope {
	case GlobalScope:
		if hasListing || hasBuilding || hasNeighborhood {
			return storeerr.InvalidArgument("global notes must not carry match keys")
		}
	case ListingScope:
		if !hasListing || hasBuilding || hasNeighborhood {
			return storeerr.InvalidArgument("listing notes require exactly a listing key")
		}
		if !strings.HasPrefix(*listingKey, matchkey.NamespaceListing+":") {
			return storeerr.InvalidArgument("listing key %q has wrong namespace", *listingKey)
		}
	case BuildingScope:
		if !hasBuilding || hasListing || hasNeighborhood {
			return storeerr.InvalidArgument("building notes require exactly a building key")
		}
		if !strings.HasPrefix(*buildingKey, matchkey.NamespaceBuilding+":") {
			return storeerr.InvalidArgument("building key %q has wrong namespace", *buildingKey)
		}
	case NeighborhoodScope:
		if !hasNeighborhood || hasListing || hasBuilding {
			return storeerr.InvalidArgument("neighborhood notes require exactly a neighborhood key")
		}
		if !strings.HasPrefix(*neighborhoodKey, matchkey.NamespaceNeighborhood+":") {
			return storeerr.InvalidArgument("neighborhood key %q has wrong namespace", *neighborhoodKey)
		}
	}
	return nil
}

// CreateNote validates and persists a new note. ID and timestamps are
// assigned here; scope/key consistency is enforced before touching the driver.
func (s *Store) CreateNote(ctx context.Context, create *Note) (*Note, error) {
	if err := validateNoteShape(create.Scope, create.Content, create.ListingKey, create.BuildingKey, create.NeighborhoodKey); err != nil {
		return nil, err
	}
	if create.ID == "" {
		create.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now
	if create.Tags == nil {
		create.Tags = []string{}
	}
	return s.driver.CreateNote(ctx, create)
}

// GetNote returns the note with the given id within the caller's tenant.
func (s *Store) GetNote(ctx context.Context, id, orgID string) (*Note, error) {
	list, err := s.driver.ListNotes(ctx, &FindNote{ID: &id, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storeerr.NotFound("note %s not found", id)
	}
	return list[0], nil
}

// ListNotes lists notes ordered by created_ts descending.
func (s *Store) ListNotes(ctx context.Context, find *FindNote) ([]*Note, error) {
	return s.driver.ListNotes(ctx, find)
}

// UpdateNote validates and applies a full replacement of the mutable fields.
// The caller supplies a freshly computed embedding; the store never computes
// embeddings itself.
func (s *Store) UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error) {
	if err := validateNoteShape(update.Scope, update.Content, update.ListingKey, update.BuildingKey, update.NeighborhoodKey); err != nil {
		return nil, err
	}
	update.UpdatedTs = time.Now().Unix()
	if update.Tags == nil {
		update.Tags = []string{}
	}
	return s.driver.UpdateNote(ctx, update)
}

// DeleteNote deletes a note. Deleting a non-existent id is an error, not a
// no-op.
func (s *Store) DeleteNote(ctx context.Context, delete *DeleteNote) error {
	return s.driver.DeleteNote(ctx, delete)
}

// UpdateNoteEmbedding replaces the embedding vector of a note without
// touching its content.
func (s *Store) UpdateNoteEmbedding(ctx context.Context, id, orgID string, embedding []float32) error {
	return s.driver.UpdateNoteEmbedding(ctx, id, orgID, embedding)
}

// ListNotesByKeys performs scoped retrieval: global notes always match,
// scoped notes match on exact key equality.
func (s *Store) ListNotesByKeys(ctx context.Context, find *FindNotesByKeys) ([]*Note, error) {
	return s.driver.ListNotesByKeys(ctx, find)
}

// VectorSearchNotes performs semantic similarity search. Notes without an
// embedding are never candidates.
func (s *Store) VectorSearchNotes(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error) {
	return s.driver.VectorSearchNotes(ctx, opts)
}

// FindNotesWithoutEmbedding lists notes pending embedding backfill.
func (s *Store) FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error) {
	return s.driver.FindNotesWithoutEmbedding(ctx, find)
}
