// Package retrieval implements the two ways notes are looked up: exact-match
// scoped retrieval over canonical keys, and similarity-ranked semantic
// retrieval over embeddings.
package retrieval

import (
	"context"

	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/store"
)

const (
	// MinLimit and MaxLimit bound the result size of any retrieval call.
	MinLimit = 1
	MaxLimit = 50

	// DefaultScopedLimit is the scoped-retrieval result size when the caller
	// does not ask for one.
	DefaultScopedLimit = 8
	// DefaultSemanticLimit is the semantic-retrieval result size when the
	// caller does not ask for one.
	DefaultSemanticLimit = 6
)

// NoteStore is the subset of the store the retrieval engines need.
type NoteStore interface {
	ListNotesByKeys(ctx context.Context, find *store.FindNotesByKeys) ([]*store.Note, error)
	VectorSearchNotes(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error)
}

// ClampLimit bounds a requested limit to [MinLimit, MaxLimit], substituting
// the given default when the caller passed nothing useful.
func ClampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ScopedRetriever performs exact-match retrieval: global notes always match,
// scoped notes match only on key equality. Ordering is by recency, not
// relevance.
type ScopedRetriever struct {
	store NoteStore
}

// NewScopedRetriever creates a scoped retriever.
func NewScopedRetriever(store NoteStore) *ScopedRetriever {
	return &ScopedRetriever{store: store}
}

// FetchByKeys returns notes whose scope matches the given keys, most recent
// first. An empty key list returns global notes only.
func (r *ScopedRetriever) FetchByKeys(ctx context.Context, orgID string, keys []string, limit int) ([]*store.Note, error) {
	return r.store.ListNotesByKeys(ctx, &store.FindNotesByKeys{
		OrgID: orgID,
		Keys:  keys,
		Limit: ClampLimit(limit, DefaultScopedLimit),
	})
}

// SemanticRetriever ranks notes by vector similarity to a query embedding.
type SemanticRetriever struct {
	store NoteStore
}

// NewSemanticRetriever creates a semantic retriever.
func NewSemanticRetriever(store NoteStore) *SemanticRetriever {
	return &SemanticRetriever{store: store}
}

// MatchByEmbedding returns the top notes by descending similarity. When keys
// is empty the search is unrestricted; otherwise candidates are notes whose
// key fields intersect keys, plus global-scope notes. Notes without an
// embedding are never candidates.
func (r *SemanticRetriever) MatchByEmbedding(ctx context.Context, orgID string, queryVector []float32, keys []string, limit int) ([]*store.NoteWithScore, error) {
	if len(queryVector) == 0 {
		return nil, svcerr.InvalidArgument("query vector is required")
	}
	return r.store.VectorSearchNotes(ctx, &store.VectorSearchOptions{
		OrgID:  orgID,
		Vector: queryVector,
		Keys:   keys,
		Limit:  ClampLimit(limit, DefaultSemanticLimit),
	})
}
