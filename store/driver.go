package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Note model related methods. Every query is constrained to the caller's
	// tenant (org_id); cross-tenant access is a driver bug.
	CreateNote(ctx context.Context, create *Note) (*Note, error)
	ListNotes(ctx context.Context, find *FindNote) ([]*Note, error)
	UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error)
	DeleteNote(ctx context.Context, delete *DeleteNote) error

	// UpdateNoteEmbedding replaces the embedding vector for a note.
	UpdateNoteEmbedding(ctx context.Context, id, orgID string, embedding []float32) error

	// ListNotesByKeys performs scoped retrieval: scope = global OR any key
	// field in the given set, ordered by created_ts descending.
	ListNotesByKeys(ctx context.Context, find *FindNotesByKeys) ([]*Note, error)

	// VectorSearchNotes performs semantic search using vector similarity.
	// Notes without an embedding are excluded from candidacy.
	VectorSearchNotes(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error)

	// FindNotesWithoutEmbedding finds notes pending embedding backfill.
	FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error)
}
