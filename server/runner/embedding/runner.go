// Package embedding backfills note embeddings. Notes created while the AI
// gateway was down, or imported without a vector, get indexed by this runner
// instead of staying invisible to semantic search forever.
package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwellify/dwellify/store"
)

// Gateway is the embedding capability the runner needs.
type Gateway interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Runner periodically indexes notes that have no embedding yet.
type Runner struct {
	store    *store.Store
	gateway  Gateway
	interval time.Duration
	batch    int
}

// NewRunner creates an embedding backfill runner.
func NewRunner(st *store.Store, gateway Gateway) *Runner {
	return &Runner{
		store:    st,
		gateway:  gateway,
		interval: 2 * time.Minute,
		batch:    20,
	}
}

// Run starts the backfill loop. It processes once on startup and then on
// every tick until ctx ends.
func (r *Runner) Run(ctx context.Context) {
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes one batch of unindexed notes across all tenants.
func (r *Runner) RunOnce(ctx context.Context) {
	notes, err := r.store.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{
		Limit: r.batch,
	})
	if err != nil {
		slog.Error("failed to find notes without embedding", "error", err)
		return
	}
	if len(notes) == 0 {
		return
	}

	slog.Info("backfilling note embeddings", "count", len(notes))
	indexed := 0
	for _, note := range notes {
		select {
		case <-ctx.Done():
			slog.Info("embedding backfill cancelled", "indexed", indexed, "total", len(notes))
			return
		default:
		}

		vector, err := r.gateway.Embedding(ctx, note.Content)
		if err != nil {
			// Gateway trouble affects the whole batch; try again next tick.
			slog.Error("embedding backfill failed", "note_id", note.ID, "error", err)
			return
		}
		if err := r.store.UpdateNoteEmbedding(ctx, note.ID, note.OrgID, vector); err != nil {
			slog.Error("failed to store backfilled embedding", "note_id", note.ID, "error", err)
			continue
		}
		indexed++
	}
	slog.Info("embedding backfill finished", "indexed", indexed)
}
