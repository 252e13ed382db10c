package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	storeerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/store"
)

// placeholder returns the n-th PostgreSQL placeholder ($n).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

func embeddingValue(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

const noteColumns = `id, org_id, created_by, scope, content, tags, listing_key, building_key, neighborhood_key, note_vector IS NOT NULL, created_ts, updated_ts`

func scanNote(scan func(dest ...any) error) (*store.Note, error) {
	var note store.Note
	var tags pq.StringArray
	var listingKey, buildingKey, neighborhoodKey sql.NullString
	if err := scan(
		&note.ID,
		&note.OrgID,
		&note.CreatedBy,
		&note.Scope,
		&note.Content,
		&tags,
		&listingKey,
		&buildingKey,
		&neighborhoodKey,
		&note.HasEmbedding,
		&note.CreatedTs,
		&note.UpdatedTs,
	); err != nil {
		return nil, err
	}
	note.Tags = []string(tags)
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
	stmt := `
		INSERT INTO note (id, org_id, created_by, scope, content, tags, listing_key, building_key, neighborhood_key, note_vector, created_ts, updated_ts)
		VALUES (` + placeholders(12) + `)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.OrgID,
		create.CreatedBy,
		create.Scope,
		create.Content,
		pq.Array(create.Tags),
		create.ListingKey,
		create.BuildingKey,
		create.NeighborhoodKey,
		embeddingValue(create.Embedding),
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
	where, args := []string{"org_id = " + placeholder(1)}, []any{find.OrgID}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `
		SELECT ` + noteColumns + `
		FROM note
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
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
	stmt := `
		UPDATE note
		SET scope = $1, content = $2, tags = $3, listing_key = $4, building_key = $5, neighborhood_key = $6, note_vector = $7, updated_ts = $8
		WHERE id = $9 AND org_id = $10
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
	err := d.db.QueryRowContext(ctx, stmt,
		update.Scope,
		update.Content,
		pq.Array(update.Tags),
		update.ListingKey,
		update.BuildingKey,
		update.NeighborhoodKey,
		embeddingValue(update.Embedding),
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
	result, err := d.db.ExecContext(ctx, `DELETE FROM note WHERE id = $1 AND org_id = $2`, delete.ID, delete.OrgID)
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
	stmt := `UPDATE note SET note_vector = $1, updated_ts = EXTRACT(EPOCH FROM now())::bigint WHERE id = $2 AND org_id = $3`
	result, err := d.db.ExecContext(ctx, stmt, embeddingValue(embedding), id, orgID)
	if err != nil {
		return errors.Wrap(err, "failed to update note embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storeerr.NotFound("note %s not found", id)
	}
	return nil
}

// keyMatchClause builds the scoped-retrieval predicate: global notes always
// match, scoped notes match on exact key equality against the given set.
func keyMatchClause(keys []string, args *[]any) string {
	if len(keys) == 0 {
		return "scope = 'global'"
	}
	*args = append(*args, pq.Array(keys))
	p := placeholder(len(*args))
	return fmt.Sprintf("(scope = 'global' OR listing_key = ANY(%s) OR building_key = ANY(%s) OR neighborhood_key = ANY(%s))", p, p, p)
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
		WHERE org_id = $1 AND ` + match + `
		ORDER BY created_ts DESC
		LIMIT ` + placeholder(len(args))

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

// VectorSearchNotes performs vector similarity search using pgvector.
// The <=> operator computes cosine distance, so similarity is 1 - distance
// and ordering by distance ascending yields most similar first.
func (d *DB) VectorSearchNotes(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 6
	}

	vector := pgvector.NewVector(opts.Vector)
	args := []any{vector, opts.OrgID}
	match := ""
	if len(opts.Keys) > 0 {
		match = " AND " + keyMatchClause(opts.Keys, &args)
	}
	args = append(args, limit)

	query := `
		SELECT ` + noteColumns + `,
			1 - (note_vector <=> $1) AS score
		FROM note
		WHERE org_id = $2 AND note_vector IS NOT NULL` + match + `
		ORDER BY note_vector <=> $1
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search notes")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		var result store.NoteWithScore
		var note store.Note
		var tags pq.StringArray
		var listingKey, buildingKey, neighborhoodKey sql.NullString
		if err := rows.Scan(
			&note.ID,
			&note.OrgID,
			&note.CreatedBy,
			&note.Scope,
			&note.Content,
			&tags,
			&listingKey,
			&buildingKey,
			&neighborhoodKey,
			&note.HasEmbedding,
			&note.CreatedTs,
			&note.UpdatedTs,
			&result.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		note.Tags = []string(tags)
		if listingKey.Valid {
			note.ListingKey = &listingKey.String
		}
		if buildingKey.Valid {
			note.BuildingKey = &buildingKey.String
		}
		if neighborhoodKey.Valid {
			note.NeighborhoodKey = &neighborhoodKey.String
		}
		result.Note = &note
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
		args = append(args, find.OrgID)
		where = fmt.Sprintf("org_id = $%d AND %s", len(args), where)
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM note
		WHERE %s
		ORDER BY created_ts DESC
		LIMIT $%d
	`, noteColumns, where, len(args))
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
