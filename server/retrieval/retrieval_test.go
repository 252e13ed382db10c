package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/store"
)

// MockNoteStore is a mock for NoteStore.
type MockNoteStore struct {
	mock.Mock
}

func (m *MockNoteStore) ListNotesByKeys(ctx context.Context, find *store.FindNotesByKeys) ([]*store.Note, error) {
	args := m.Called(ctx, find)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Note), args.Error(1)
}

func (m *MockNoteStore) VectorSearchNotes(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.NoteWithScore), args.Error(1)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultScopedLimit, ClampLimit(0, DefaultScopedLimit))
	assert.Equal(t, DefaultSemanticLimit, ClampLimit(-3, DefaultSemanticLimit))
	assert.Equal(t, 1, ClampLimit(1, 8))
	assert.Equal(t, 25, ClampLimit(25, 8))
	assert.Equal(t, MaxLimit, ClampLimit(5000, 8))
}

func TestFetchByKeysClampsLimit(t *testing.T) {
	ctx := context.Background()
	ms := &MockNoteStore{}
	ms.On("ListNotesByKeys", ctx, &store.FindNotesByKeys{
		OrgID: "org-1",
		Keys:  []string{"building:2330_n_clark_st"},
		Limit: MaxLimit,
	}).Return([]*store.Note{}, nil)

	r := NewScopedRetriever(ms)
	_, err := r.FetchByKeys(ctx, "org-1", []string{"building:2330_n_clark_st"}, 999)
	require.NoError(t, err)
	ms.AssertExpectations(t)
}

func TestFetchByKeysEmptyKeysStillQueriesGlobals(t *testing.T) {
	// Open question resolved: an empty key list is allowed and returns global
	// notes only, mirroring the always-match rule for the global scope.
	ctx := context.Background()
	global := &store.Note{ID: "n1", Scope: store.GlobalScope, Content: "always applies"}
	ms := &MockNoteStore{}
	ms.On("ListNotesByKeys", ctx, &store.FindNotesByKeys{
		OrgID: "org-1",
		Keys:  nil,
		Limit: DefaultScopedLimit,
	}).Return([]*store.Note{global}, nil)

	r := NewScopedRetriever(ms)
	notes, err := r.FetchByKeys(ctx, "org-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, store.GlobalScope, notes[0].Scope)
}

func TestMatchByEmbeddingRequiresVector(t *testing.T) {
	r := NewSemanticRetriever(&MockNoteStore{})
	_, err := r.MatchByEmbedding(context.Background(), "org-1", nil, nil, 6)
	require.Error(t, err)
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeInvalidArgument))
}

func TestMatchByEmbeddingPassesKeyFilter(t *testing.T) {
	ctx := context.Background()
	vector := []float32{0.1, 0.2, 0.3}
	keys := []string{"neighborhood:wicker-park"}

	ms := &MockNoteStore{}
	ms.On("VectorSearchNotes", ctx, &store.VectorSearchOptions{
		OrgID:  "org-1",
		Vector: vector,
		Keys:   keys,
		Limit:  DefaultSemanticLimit,
	}).Return([]*store.NoteWithScore{
		{Note: &store.Note{ID: "n1", HasEmbedding: true}, Score: 0.92},
		{Note: &store.Note{ID: "n2", HasEmbedding: true}, Score: 0.75},
	}, nil)

	r := NewSemanticRetriever(ms)
	results, err := r.MatchByEmbedding(ctx, "org-1", vector, keys, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Descending similarity, and every result is an indexed note.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.True(t, r.Note.HasEmbedding)
	}
	ms.AssertExpectations(t)
}
