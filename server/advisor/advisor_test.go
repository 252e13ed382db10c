package advisor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwellify/dwellify/plugin/mls"
	"github.com/dwellify/dwellify/server/ai"
	svcerr "github.com/dwellify/dwellify/internal/errors"
	"github.com/dwellify/dwellify/server/score"
	"github.com/dwellify/dwellify/store"
)

type fakeGateway struct {
	embedErr error
	chatErr  error
	reply    string

	chatMessages []ai.Message
}

func (g *fakeGateway) Embedding(ctx context.Context, text string) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (g *fakeGateway) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	g.chatMessages = messages
	if g.chatErr != nil {
		return "", g.chatErr
	}
	return g.reply, nil
}

type fakeMatcher struct {
	notes    []*store.NoteWithScore
	err      error
	gotKeys  []string
	gotOrgID string
}

func (m *fakeMatcher) MatchByEmbedding(ctx context.Context, orgID string, queryVector []float32, keys []string, limit int) ([]*store.NoteWithScore, error) {
	m.gotOrgID = orgID
	m.gotKeys = keys
	return m.notes, m.err
}

type fakeListings struct {
	listing  *mls.ListingSummary
	searched []*mls.ListingSummary
	err      error
}

func (l *fakeListings) GetByID(ctx context.Context, listingID string) (*mls.ListingSummary, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.listing, nil
}

func (l *fakeListings) Search(ctx context.Context, params mls.SearchParams) (*mls.SearchResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &mls.SearchResult{Listings: l.searched}, nil
}

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func testListing() *mls.ListingSummary {
	return &mls.ListingSummary{
		ID:      "MRED-1",
		Address: "233 W Lake St #1205",
		Price:   f(625000),
		Beds:    f(2),
		Baths:   f(2),
		Sqft:    f(1180),
		Status:  s("Active"),
	}
}

func testNotes() []*store.NoteWithScore {
	return []*store.NoteWithScore{
		{Note: &store.Note{ID: "n1", Content: "HOA is litigious, check minutes."}, Score: 0.91},
	}
}

func TestAdviseStructuredReply(t *testing.T) {
	gateway := &fakeGateway{reply: `{"summary":"Solid Loop condo.","insights":["HOA needs a closer look."]}`}
	matcher := &fakeMatcher{notes: testNotes()}
	listings := &fakeListings{listing: testListing()}

	o := NewOrchestrator(gateway, matcher, listings)
	resp, err := o.Advise(context.Background(), &Request{
		OrgID:     "org-1",
		Message:   "Is this a good buy?",
		ListingID: "MRED-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Solid Loop condo.", resp.Summary)
	assert.Equal(t, []string{"HOA needs a closer look."}, resp.Insights)
	assert.Equal(t, testNotes(), resp.NotesUsed)
	require.NotNil(t, resp.ListingFacts)
	assert.Equal(t, "MRED-1", resp.ListingFacts.ID)
	assert.Equal(t, "org-1", matcher.gotOrgID)
	assert.Equal(t, []string{"mred:mred-1"}, matcher.gotKeys)

	// Facts and notes arrive as separated context blocks with an attribution
	// instruction in the system prompt.
	require.Len(t, gateway.chatMessages, 3)
	assert.Contains(t, gateway.chatMessages[0].Content, "attribution")
	assert.Contains(t, gateway.chatMessages[1].Content, "MLS facts:")
	assert.Contains(t, gateway.chatMessages[1].Content, "Realtor notes:")
	assert.Contains(t, gateway.chatMessages[1].Content, "HOA is litigious")
	assert.Equal(t, "Is this a good buy?", gateway.chatMessages[2].Content)
}

func TestAdviseNonJSONReplyFallsBack(t *testing.T) {
	gateway := &fakeGateway{reply: "Honestly, it depends on the HOA."}
	o := NewOrchestrator(gateway, &fakeMatcher{notes: testNotes()}, &fakeListings{listing: testListing()})

	resp, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "thoughts?", ListingID: "MRED-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Honestly, it depends on the HOA."}, resp.Insights)
	// Summary is synthesized locally from the listing facts in hand.
	assert.Equal(t, "233 W Lake St #1205, $625,000, 2 bd / 2 ba, Active", resp.Summary)
}

func TestAdviseFencedJSONReply(t *testing.T) {
	gateway := &fakeGateway{reply: "```json\n{\"summary\":\"Fine.\",\"insights\":[]}\n```"}
	o := NewOrchestrator(gateway, &fakeMatcher{}, nil)

	resp, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "well?"})
	require.NoError(t, err)
	assert.Equal(t, "Fine.", resp.Summary)
	assert.Empty(t, resp.Insights)
}

func TestAdviseToleratesListingFailure(t *testing.T) {
	gateway := &fakeGateway{reply: `{"summary":"Notes only.","insights":[]}`}
	listings := &fakeListings{err: errors.New("provider down")}

	o := NewOrchestrator(gateway, &fakeMatcher{notes: testNotes()}, listings)
	resp, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "hi", ListingID: "MRED-1"})
	require.NoError(t, err)
	assert.Nil(t, resp.ListingFacts)
	assert.Equal(t, "Notes only.", resp.Summary)
}

func TestAdviseQuickPicksWithoutListingID(t *testing.T) {
	gateway := &fakeGateway{reply: `{"summary":"Look at Wicker Park.","insights":[]}`}
	cheap := testListing()
	cheap.ID = "MRED-2"
	cheap.Price = f(450000)
	listings := &fakeListings{searched: []*mls.ListingSummary{testListing(), cheap}}

	o := NewOrchestrator(gateway, &fakeMatcher{}, listings)
	resp, err := o.Advise(context.Background(), &Request{
		OrgID:   "org-1",
		Message: "what should I look at?",
		Prefs:   &score.Prefs{MaxPrice: f(500000)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.QuickPicks)
	// The under-budget candidate ranks first.
	assert.Equal(t, "MRED-2", resp.QuickPicks[0].Listing.ID)
	assert.Contains(t, gateway.chatMessages[1].Content, "Candidate listings")
}

func TestAdviseEmptyMessageRejectedBeforeGateways(t *testing.T) {
	gateway := &fakeGateway{embedErr: errors.New("should not be called")}
	o := NewOrchestrator(gateway, &fakeMatcher{}, nil)

	_, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "   "})
	require.Error(t, err)
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeInvalidArgument))
}

func TestAdviseEmbeddingFailurePropagates(t *testing.T) {
	gateway := &fakeGateway{embedErr: svcerr.Upstream("embedding gateway failed", errors.New("503"))}
	o := NewOrchestrator(gateway, &fakeMatcher{}, nil)

	_, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "hi"})
	require.Error(t, err)
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeUpstream))
}

func TestAdviseMatcherFailureIsAdvisorFailure(t *testing.T) {
	gateway := &fakeGateway{reply: "unused"}
	o := NewOrchestrator(gateway, &fakeMatcher{err: errors.New("db gone")}, nil)

	_, err := o.Advise(context.Background(), &Request{OrgID: "org-1", Message: "hi"})
	require.Error(t, err)
	assert.True(t, svcerr.IsCode(err, svcerr.ErrCodeAdvisorFailed))
}
