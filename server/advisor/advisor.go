// Package advisor composes note retrieval, live listing facts and a chat
// completion into a structured advisory answer. Facts and opinions stay in
// separate context blocks all the way into the prompt so the model can keep
// them attributed.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwellify/dwellify/plugin/mls"
	"github.com/dwellify/dwellify/server/ai"
	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/internal/observability"
	"github.com/dwellify/dwellify/server/matchkey"
	"github.com/dwellify/dwellify/server/retrieval"
	"github.com/dwellify/dwellify/server/score"
	"github.com/dwellify/dwellify/store"
)

const systemPrompt = "You are a helpful real estate advisor. You receive two kinds of context: " +
	"MLS facts and realtor notes. Never blend the two without attribution; when you use a " +
	"realtor note, say it comes from a realtor note. If you are unsure, say so. " +
	`Respond with JSON of the shape {"summary": string, "insights": [string]} and nothing else.`

// Gateway is the AI capability the orchestrator needs.
type Gateway interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
	Chat(ctx context.Context, messages []ai.Message) (string, error)
}

// NoteMatcher is the semantic-retrieval capability the orchestrator needs.
type NoteMatcher interface {
	MatchByEmbedding(ctx context.Context, orgID string, queryVector []float32, keys []string, limit int) ([]*store.NoteWithScore, error)
}

// ListingLookup is the listing capability the orchestrator needs. Failures
// here are tolerated; the advisory proceeds on notes alone.
type ListingLookup interface {
	GetByID(ctx context.Context, listingID string) (*mls.ListingSummary, error)
	Search(ctx context.Context, params mls.SearchParams) (*mls.SearchResult, error)
}

// Request is one advisory question with optional subject identifiers. Prefs
// turn on quick picks when no specific listing is asked about.
type Request struct {
	OrgID           string
	Message         string
	ListingID       string
	BuildingAddress string
	Neighborhood    string
	Prefs           *score.Prefs
}

// Response is the structured advisory answer.
type Response struct {
	Summary      string                 `json:"summary"`
	Insights     []string               `json:"insights"`
	NotesUsed    []*store.NoteWithScore `json:"notesUsed"`
	ListingFacts *mls.ListingSummary    `json:"listingFacts,omitempty"`
	QuickPicks   []*score.Result        `json:"quickPicks,omitempty"`
}

// Orchestrator runs the advisory flow.
type Orchestrator struct {
	gateway  Gateway
	matcher  NoteMatcher
	listings ListingLookup
}

// NewOrchestrator creates an advisor orchestrator.
func NewOrchestrator(gateway Gateway, matcher NoteMatcher, listings ListingLookup) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		matcher:  matcher,
		listings: listings,
	}
}

// Advise answers one question. Embedding and completion failures abort the
// whole operation; a failed listing lookup does not.
func (o *Orchestrator) Advise(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	metrics := observability.GlobalMetrics()
	metrics.RecordAdvise()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		metrics.RecordAdviseFailure()
		return nil, svcerr.InvalidArgument("message is required")
	}

	keys := matchkey.BuildMatchKeys(matchkey.Input{
		ListingID:       req.ListingID,
		BuildingAddress: req.BuildingAddress,
		Neighborhood:    req.Neighborhood,
	})

	// The embedding-plus-retrieval chain and the listing fetch have no
	// ordering dependency, so they run concurrently and join here.
	var notes []*store.NoteWithScore
	var listing *mls.ListingSummary
	var picks []*score.Result
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		vector, err := o.gateway.Embedding(groupCtx, message)
		if err != nil {
			return err
		}
		notes, err = o.matcher.MatchByEmbedding(groupCtx, req.OrgID, vector, keys, retrieval.DefaultSemanticLimit)
		return err
	})
	group.Go(func() error {
		if o.listings == nil {
			return nil
		}
		if req.ListingID != "" {
			fetched, err := o.listings.GetByID(groupCtx, req.ListingID)
			if err != nil {
				slog.Warn("listing lookup failed, advising on notes only",
					"listing_id", req.ListingID, "error", err)
				return nil
			}
			listing = fetched
			return nil
		}
		picks = o.quickPicks(groupCtx, req)
		return nil
	})
	if err := group.Wait(); err != nil {
		metrics.RecordAdviseFailure()
		if svcerr.IsCode(err, svcerr.ErrCodeUpstream) {
			return nil, err
		}
		return nil, svcerr.AdvisorFailed("note retrieval failed", err)
	}

	reply, err := o.gateway.Chat(ctx, []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "assistant", Content: buildContext(listing, notes, picks)},
		{Role: "user", Content: message},
	})
	if err != nil {
		metrics.RecordAdviseFailure()
		return nil, err
	}

	response := parseReply(reply, listing)
	response.NotesUsed = notes
	response.ListingFacts = listing
	response.QuickPicks = picks
	metrics.RecordDuration(time.Since(start))
	return response, nil
}

// quickPicks runs a scored candidate search when the caller asked a general
// question with preferences instead of naming a listing. Best effort only.
func (o *Orchestrator) quickPicks(ctx context.Context, req *Request) []*score.Result {
	if req.Prefs == nil {
		return nil
	}
	result, err := o.listings.Search(ctx, mls.SearchParams{
		Query:  req.Neighborhood,
		Status: "Active",
	})
	if err != nil {
		slog.Warn("quick-pick search failed", "error", err)
		return nil
	}
	ranked := score.Rank(result.Listings, *req.Prefs)
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	return ranked
}

// buildContext renders the context blocks. MLS facts come first, realtor
// notes last, each under its own heading.
func buildContext(listing *mls.ListingSummary, notes []*store.NoteWithScore, picks []*score.Result) string {
	lines := []string{}
	if listing != nil {
		lines = append(lines, "MLS facts:")
		lines = append(lines, "- Address: "+listing.Address)
		if listing.Price != nil {
			lines = append(lines, "- Price: "+mls.FormatPrice(*listing.Price))
		}
		if listing.Beds != nil || listing.Baths != nil || listing.Sqft != nil {
			lines = append(lines, fmt.Sprintf("- Beds/Baths/Sqft: %s/%s/%s",
				formatCount(listing.Beds), formatCount(listing.Baths), formatCount(listing.Sqft)))
		}
		if listing.Status != nil {
			lines = append(lines, "- Status: "+*listing.Status)
		}
		lines = append(lines, "")
	}

	if len(picks) > 0 {
		lines = append(lines, "Candidate listings (MLS facts, scored against the buyer's preferences):")
		for _, pick := range picks {
			line := "- " + pick.Listing.Address
			if pick.Listing.Price != nil {
				line += ", " + mls.FormatPrice(*pick.Listing.Price)
			}
			line += fmt.Sprintf(" (score %d)", pick.Score)
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}

	if len(notes) > 0 {
		lines = append(lines, "Realtor notes:")
		for _, note := range notes {
			lines = append(lines, "- "+note.Note.Content)
		}
	} else {
		lines = append(lines, "Realtor notes: (none found)")
	}
	return strings.Join(lines, "\n")
}

func formatCount(v *float64) string {
	if v == nil {
		return "?"
	}
	return strings.TrimSuffix(fmt.Sprintf("%.2f", *v), ".00")
}

type structuredReply struct {
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
}

// parseReply extracts the structured answer. A malformed reply degrades to
// the raw text as a single insight with a locally synthesized summary; it
// never fails.
func parseReply(raw string, listing *mls.ListingSummary) *Response {
	text := strings.TrimSpace(raw)
	candidate := text
	// Models wrap JSON in code fences often enough to be worth peeling.
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")
		candidate = strings.TrimSpace(candidate)
	}

	var parsed structuredReply
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.Summary != "" {
		if parsed.Insights == nil {
			parsed.Insights = []string{}
		}
		return &Response{Summary: parsed.Summary, Insights: parsed.Insights}
	}

	slog.Debug("advisor reply was not structured, falling back to raw text")
	return &Response{
		Summary:  synthesizeSummary(listing),
		Insights: []string{text},
	}
}

// synthesizeSummary builds a minimal factual summary from the listing data
// already in hand when the model's own summary is unusable.
func synthesizeSummary(listing *mls.ListingSummary) string {
	if listing == nil {
		return "Advisory based on realtor notes."
	}
	parts := []string{listing.Address}
	if listing.Price != nil {
		parts = append(parts, mls.FormatPrice(*listing.Price))
	}
	if listing.Beds != nil && listing.Baths != nil {
		parts = append(parts, fmt.Sprintf("%s bd / %s ba", formatCount(listing.Beds), formatCount(listing.Baths)))
	}
	if listing.Status != nil {
		parts = append(parts, *listing.Status)
	}
	return strings.Join(parts, ", ")
}
