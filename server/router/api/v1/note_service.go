package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/matchkey"
	"github.com/dwellify/dwellify/server/retrieval"
	"github.com/dwellify/dwellify/store"
)

// noteRequest is the create/update payload. Raw identifiers come in; keys
// are derived server-side and never accepted from the client.
type noteRequest struct {
	Scope           string `json:"scope"`
	Content         string `json:"content"`
	Tags            any    `json:"tags"`
	ListingID       string `json:"listingId"`
	BuildingAddress string `json:"buildingAddress"`
	Neighborhood    string `json:"neighborhood"`
}

// noteResponse is the wire shape of a note. Embeddings never leave the
// server; only their presence does.
type noteResponse struct {
	ID              string   `json:"id"`
	Scope           string   `json:"scope"`
	Content         string   `json:"content"`
	Tags            []string `json:"tags"`
	ListingKey      *string  `json:"listingKey"`
	BuildingKey     *string  `json:"buildingKey"`
	NeighborhoodKey *string  `json:"neighborhoodKey"`
	HasEmbedding    bool     `json:"hasEmbedding"`
	CreatedBy       string   `json:"createdBy"`
	CreatedTs       int64    `json:"createdTs"`
	UpdatedTs       int64    `json:"updatedTs"`
}

func convertNote(note *store.Note) *noteResponse {
	return &noteResponse{
		ID:              note.ID,
		Scope:           string(note.Scope),
		Content:         note.Content,
		Tags:            note.Tags,
		ListingKey:      note.ListingKey,
		BuildingKey:     note.BuildingKey,
		NeighborhoodKey: note.NeighborhoodKey,
		HasEmbedding:    note.HasEmbedding,
		CreatedBy:       note.CreatedBy,
		CreatedTs:       note.CreatedTs,
		UpdatedTs:       note.UpdatedTs,
	}
}

func convertNotes(notes []*store.Note) []*noteResponse {
	out := make([]*noteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, convertNote(note))
	}
	return out
}

// parseTags accepts either an array of strings or one comma-separated
// string, the two shapes the admin form submits.
func parseTags(input any) []string {
	switch v := input.(type) {
	case []any:
		out := []string{}
		for _, item := range v {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	case []string:
		out := []string{}
		for _, s := range v {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case string:
		out := []string{}
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return []string{}
}

// deriveKeys validates the scope/identifier pairing and derives the key
// fields for it. All failures here are validation errors.
func deriveKeys(req *noteRequest) (store.NoteScope, *string, *string, *string, error) {
	scope := store.NoteScope(req.Scope)
	if req.Scope == "" {
		scope = store.GlobalScope
	}
	if !scope.Validate() {
		return "", nil, nil, nil, svcerr.InvalidArgument("invalid scope %q", req.Scope)
	}

	switch scope {
	case store.ListingScope:
		if strings.TrimSpace(req.ListingID) == "" {
			return "", nil, nil, nil, svcerr.InvalidArgument("listing id is required for listing scope")
		}
	case store.BuildingScope:
		if strings.TrimSpace(req.BuildingAddress) == "" {
			return "", nil, nil, nil, svcerr.InvalidArgument("building address is required for building scope")
		}
	case store.NeighborhoodScope:
		if strings.TrimSpace(req.Neighborhood) == "" {
			return "", nil, nil, nil, svcerr.InvalidArgument("neighborhood is required for neighborhood scope")
		}
	}

	var listingKey, buildingKey, neighborhoodKey *string
	switch scope {
	case store.ListingScope:
		k := matchkey.ToListingKey(req.ListingID)
		listingKey = &k
	case store.BuildingScope:
		k := matchkey.ToBuildingKey(req.BuildingAddress)
		buildingKey = &k
	case store.NeighborhoodScope:
		k := matchkey.ToNeighborhoodKey(req.Neighborhood)
		neighborhoodKey = &k
	}
	return scope, listingKey, buildingKey, neighborhoodKey, nil
}

// CreateNote creates a note and indexes its content.
func (s *APIV1Service) CreateNote(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	req := &noteRequest{}
	if err := c.Bind(req); err != nil {
		return fail(c, svcerr.InvalidArgument("malformed request body"))
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return fail(c, svcerr.InvalidArgument("content is required"))
	}
	scope, listingKey, buildingKey, neighborhoodKey, err := deriveKeys(req)
	if err != nil {
		return fail(c, err)
	}

	ctx := c.Request().Context()
	embedding, err := s.Gateway.Embedding(ctx, content)
	if err != nil {
		return fail(c, err)
	}

	note, err := s.Store.CreateNote(ctx, &store.Note{
		OrgID:           caller.OrgID,
		CreatedBy:       caller.UserID,
		Scope:           scope,
		Content:         content,
		Tags:            parseTags(req.Tags),
		ListingKey:      listingKey,
		BuildingKey:     buildingKey,
		NeighborhoodKey: neighborhoodKey,
		Embedding:       embedding,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"note": convertNote(note)})
}

// ListNotes performs scoped retrieval when identifiers are given, otherwise
// lists recent notes.
func (s *APIV1Service) ListNotes(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, svcerr.InvalidArgument("limit must be an integer"))
		}
		limit = parsed
	}

	listingID := c.QueryParam("listingId")
	buildingAddress := c.QueryParam("buildingAddress")
	neighborhood := c.QueryParam("neighborhood")

	if listingID != "" || buildingAddress != "" || neighborhood != "" || c.QueryParams().Has("scoped") {
		keys := matchkey.BuildMatchKeys(matchkey.Input{
			ListingID:       listingID,
			BuildingAddress: buildingAddress,
			Neighborhood:    neighborhood,
		})
		notes, err := s.scoped.FetchByKeys(ctx, caller.OrgID, keys, limit)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"notes": convertNotes(notes)})
	}

	clamped := retrieval.ClampLimit(limit, retrieval.DefaultScopedLimit)
	notes, err := s.Store.ListNotes(ctx, &store.FindNote{OrgID: caller.OrgID, Limit: &clamped})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": convertNotes(notes)})
}

// GetNote returns one note by id.
func (s *APIV1Service) GetNote(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	note, err := s.Store.GetNote(c.Request().Context(), c.Param("id"), caller.OrgID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"note": convertNote(note)})
}

// UpdateNote fully replaces the mutable fields of a note and re-indexes the
// new content. Admin only.
func (s *APIV1Service) UpdateNote(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	req := &noteRequest{}
	if err := c.Bind(req); err != nil {
		return fail(c, svcerr.InvalidArgument("malformed request body"))
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return fail(c, svcerr.InvalidArgument("content is required"))
	}
	scope, listingKey, buildingKey, neighborhoodKey, err := deriveKeys(req)
	if err != nil {
		return fail(c, err)
	}

	ctx := c.Request().Context()
	embedding, err := s.Gateway.Embedding(ctx, content)
	if err != nil {
		return fail(c, err)
	}

	note, err := s.Store.UpdateNote(ctx, &store.UpdateNote{
		ID:              c.Param("id"),
		OrgID:           caller.OrgID,
		Scope:           scope,
		Content:         content,
		Tags:            parseTags(req.Tags),
		ListingKey:      listingKey,
		BuildingKey:     buildingKey,
		NeighborhoodKey: neighborhoodKey,
		Embedding:       embedding,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"note": convertNote(note)})
}

// DeleteNote deletes a note. Admin only.
func (s *APIV1Service) DeleteNote(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteNote(c.Request().Context(), &store.DeleteNote{
		ID:    c.Param("id"),
		OrgID: caller.OrgID,
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// RegenerateEmbedding recomputes the embedding for one note from its stored
// content. Admin only.
func (s *APIV1Service) RegenerateEmbedding(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	body := struct {
		NoteID string `json:"noteId"`
	}{}
	if err := c.Bind(&body); err != nil || body.NoteID == "" {
		return fail(c, svcerr.InvalidArgument("note id is required"))
	}

	ctx := c.Request().Context()
	note, err := s.Store.GetNote(ctx, body.NoteID, caller.OrgID)
	if err != nil {
		return fail(c, err)
	}
	embedding, err := s.Gateway.Embedding(ctx, note.Content)
	if err != nil {
		return fail(c, err)
	}
	if err := s.Store.UpdateNoteEmbedding(ctx, note.ID, caller.OrgID, embedding); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "embedding regenerated"})
}
