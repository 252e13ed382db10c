package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	storeerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/store"
)

func tagsValue(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	buf, err := json.Marshal(tags)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal tags")
	}
	return string(buf), nil
}

func embeddingValue(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	buf, err := json.Marshal(embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}
	return string(buf), nil
}

const noteColumns = `id, org_id, created_by, scope, content, tags, listing_key, building_key, neighborhood_key, note_vector IS NOT NULL, created_ts, updated_ts`

func scanNote(scan func(dest ...any) error) (*store.Note, error) {
	var note store.Note
	var tagsJSON string
	var listingKey, buildingKey, neighborhoodKey sql.NullString
	if err := scan(
		&note.ID,
		&note.OrgID,
		&note.CreatedBy,
		&note.Scope,
		&note.Content,
		&tagsJSON,
		&listingKey,
		&buildingKey,
		&neighborhoodKey,
		&note.HasEmbedding,
		&note.CreatedTs,
		&note.UpdatedTs,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	if listingKey.Valid {
		note.ListingKey = &listingKey.String
	}
	if buildingKey.Valid {
		note.BuildingKey = &buildingKey.String
	}
	if neighborhoodKey.Valid {
		note.NeighborhoodKey = &neighborhoodKey.String
	}
	return &note, nil
}

// CreateNote inserts a note row.
func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	tags, err := tagsValue(create.Tags)
	if err != nil {
		return nil, err
	}
	vector, err := embeddingValue(create.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO note (id, org_id, created_by, scope, content, tags, listing_key, building_key, neighborhood_key, note_vector, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.OrgID,
		create.CreatedBy,
		create.Scope,
		create.Content,
		tags,
		create.ListingKey,
		create.BuildingKey,
		create.NeighborhoodKey,
		vector,
		create.CreatedTs,
		create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}

	create.HasEmbedding = len(create.Embedding) > 0
	return create, nil
}

// ListNotes lists notes of a tenant, ordered by created_ts descending.
func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"org_id = ?"}, []any{find.OrgID}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}

	query := `
		SELECT ` + noteColumns + `
		FROM note
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	list := []*store.Note{}
	for rows.Next() {
		note, err := scanNote(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		list = append(list, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateNote replaces the mutable fields of a note.
func (d *DB) UpdateNote(ctx context.Context, update *store.UpdateNote) (*store.Note, error) {
	tags, err := tagsValue(update.Tags)
	if err != nil {
		return nil, err
	}
	vector, err := embeddingValue(update.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `
		UPDATE note
		SET scope = ?, content = ?, tags = ?, listing_key = ?, building_key = ?, neighborhood_key = ?, note_vector = ?, updated_ts = ?
		WHERE id = ? AND org_id = ?
		RETURNING created_by, created_ts
	`
	note := &store.Note{
		ID:              update.ID,
		OrgID:           update.OrgID,
		Scope:           update.Scope,
		Content:         update.Content,
		Tags:            update.Tags,
		ListingKey:      update.ListingKey,
		BuildingKey:     update.BuildingKey,
		NeighborhoodKey: update.NeighborhoodKey,
		HasEmbedding:    len(update.Embedding) > 0,
		UpdatedTs:       update.UpdatedTs,
	}
	err = d.db.QueryRowContext(ctx, stmt,
		update.Scope,
		update.Content,
		tags,
		update.ListingKey,
		update.BuildingKey,
		update.NeighborhoodKey,
		vector,
		update.UpdatedTs,
		update.ID,
		update.OrgID,
	).Scan(&note.CreatedBy, &note.CreatedTs)
	if err == sql.ErrNoRows {
		return nil, storeerr.NotFound("note %s not found", update.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update note")
	}
	return note, nil
}

// DeleteNote deletes a note. Deleting an absent id reports not-found.
func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note WHERE id = ? AND org_id = ?`, delete.ID, delete.OrgID)
	if err != nil {
		return errors.Wrap(err, "failed to delete note")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storeerr.NotFound("note %s not found", delete.ID)
	}
	return nil
}

// UpdateNoteEmbedding replaces the embedding vector for a note.
func (d *DB) UpdateNoteEmbedding(ctx context.Context, id, orgID string, embedding []float32) error {
	vector, err := embeddingValue(embedding)
	if err != nil {
		return err
	}
	result, err := d.db.ExecContext(ctx,
		`UPDATE note SET note_vector = ?, updated_ts = ? WHERE id = ? AND org_id = ?`,
		vector, time.Now().Unix(), id, orgID)
	if err != nil {
		return errors.Wrap(err, "failed to update note embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storeerr.NotFound("note %s not found", id)
	}
	return nil
}

// keyMatchClause builds the scoped-retrieval predicate with ? placeholders.
func keyMatchClause(keys []string, args *[]any) string {
	if len(keys) == 0 {
		return "scope = 'global'"
	}
	in := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ") + ")"
	clause := "(scope = 'global' OR listing_key IN " + in + " OR building_key IN " + in + " OR neighborhood_key IN " + in + ")"
	for i := 0; i < 3; i++ {
		for _, key := range keys {
			*args = append(*args, key)
		}
	}
	return clause
}

// ListNotesByKeys performs scoped retrieval ordered by recency.
func (d *DB) ListNotesByKeys(ctx context.Context, find *store.FindNotesByKeys) ([]*store.Note, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 8
	}

	args := []any{find.OrgID}
	match := keyMatchClause(find.Keys, &args)
	args = append(args, limit)

	query := `
		SELECT ` + noteColumns + `
		FROM note
		WHERE org_id = ? AND ` + match + `
		ORDER BY created_ts DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes by keys")
	}
	defer rows.Close()

	list := []*store.Note{}
	for rows.Next() {
		note, err := scanNote(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		list = append(list, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// VectorSearchNotes ranks candidate notes by cosine similarity computed
// in-process. Candidates are restricted in SQL to indexed notes of the
// tenant (and the key filter when given); only the ranking happens in Go.
func (d *DB) VectorSearchNotes(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 6
	}

	args := []any{opts.OrgID}
	match := ""
	if len(opts.Keys) > 0 {
		match = " AND " + keyMatchClause(opts.Keys, &args)
	}

	query := `
		SELECT ` + noteColumns + `, note_vector
		FROM note
		WHERE org_id = ? AND note_vector IS NOT NULL` + match

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search notes")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		var note store.Note
		var tagsJSON, vectorJSON string
		var listingKey, buildingKey, neighborhoodKey sql.NullString
		if err := rows.Scan(
			&note.ID,
			&note.OrgID,
			&note.CreatedBy,
			&note.Scope,
			&note.Content,
			&tagsJSON,
			&listingKey,
			&buildingKey,
			&neighborhoodKey,
			&note.HasEmbedding,
			&note.CreatedTs,
			&note.UpdatedTs,
			&vectorJSON,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search candidate")
		}
		if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
		var vector []float32
		if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal embedding")
		}
		if listingKey.Valid {
			note.ListingKey = &listingKey.String
		}
		if buildingKey.Valid {
			note.BuildingKey = &buildingKey.String
		}
		if neighborhoodKey.Valid {
			note.NeighborhoodKey = &neighborhoodKey.String
		}
		results = append(results, &store.NoteWithScore{
			Note:  &note,
			Score: cosineSimilarity(opts.Vector, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FindNotesWithoutEmbedding finds notes that have not been indexed yet.
func (d *DB) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	// An empty org means all tenants; the backfill runner scans globally.
	where := "note_vector IS NULL AND LENGTH(content) > 0"
	args := []any{}
	if find.OrgID != "" {
		where = "org_id = ? AND " + where
		args = append(args, find.OrgID)
	}
	args = append(args, limit)
	query := `
		SELECT ` + noteColumns + `
		FROM note
		WHERE ` + where + `
		ORDER BY created_ts DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find notes without embedding")
	}
	defer rows.Close()

	list := []*store.Note{}
	for rows.Next() {
		note, err := scanNote(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		list = append(list, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// cosineSimilarity returns the cosine of the angle between a and b. Mismatched
// or zero-length vectors score zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
