package book

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a scripted Adapter that records every call.
type fakeAdapter struct {
	name string

	lookup      map[string]CandidateRecord
	lookupDelay time.Duration
	lookupPanic bool

	search      []CandidateRecord
	searchPanic bool
	searchBlock bool

	mu            sync.Mutex
	lookupCalls   []string
	searchQueries []string
	searchMax     []int
	cancelled     atomic.Bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) SearchByText(ctx context.Context, query string, maxResults int) []CandidateRecord {
	f.mu.Lock()
	f.searchQueries = append(f.searchQueries, query)
	f.searchMax = append(f.searchMax, maxResults)
	f.mu.Unlock()

	if f.searchPanic {
		panic("search exploded")
	}
	if f.searchBlock {
		<-make(chan struct{})
	}
	if maxResults > 0 && len(f.search) > maxResults {
		return f.search[:maxResults]
	}
	return f.search
}

func (f *fakeAdapter) LookupByIdentifier(ctx context.Context, isbn string) (CandidateRecord, bool) {
	f.mu.Lock()
	f.lookupCalls = append(f.lookupCalls, isbn)
	f.mu.Unlock()

	if f.lookupPanic {
		panic("lookup exploded")
	}
	if f.lookupDelay > 0 {
		select {
		case <-time.After(f.lookupDelay):
		case <-ctx.Done():
			f.cancelled.Store(true)
			return CandidateRecord{}, false
		}
	}
	c, ok := f.lookup[isbn]
	return c, ok
}

func (f *fakeAdapter) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchQueries)
}

func (f *fakeAdapter) lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lookupCalls...)
}

type outcomeRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *outcomeRecorder) RecordOutcome(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func hobbitDraft() DraftRecord {
	return DraftRecord{
		Title:       "The Hobbit",
		Author:      "J.R.R. Tolkien",
		ISBN13:      "9780141439518",
		Description: "My well-loved copy.",
	}
}

func TestResolveIdentifierHitShortCircuitsTextSearch(t *testing.T) {
	hit := CandidateRecord{Source: "primary", ExternalID: "gb-1", Title: "Some Other Title Entirely", Publisher: "Penguin"}
	primary := &fakeAdapter{name: "primary", lookup: map[string]CandidateRecord{"9780141439518": hit}}
	secondary := &fakeAdapter{name: "secondary"}

	o := NewOrchestrator([]Adapter{primary, secondary})
	res := o.Resolve(context.Background(), hobbitDraft())

	require.Equal(t, StateMerged, res.State)
	assert.Equal(t, StateIdentifierLookup, res.Phase)
	require.NotNil(t, res.Match)
	// Identifier hits skip the evaluator even when the title differs.
	assert.True(t, res.Match.Accepted)
	assert.Equal(t, hit, res.Match.Candidate)
	assert.Equal(t, "Penguin", res.Payload.Publisher)

	assert.Zero(t, primary.searchCount())
	assert.Zero(t, secondary.searchCount())
}

func TestResolveIdentifierPrefersPriorityOverSpeed(t *testing.T) {
	slowPrimary := &fakeAdapter{
		name:        "primary",
		lookupDelay: 50 * time.Millisecond,
		lookup:      map[string]CandidateRecord{"9780141439518": {Source: "primary", Title: "The Hobbit"}},
	}
	fastSecondary := &fakeAdapter{
		name:   "secondary",
		lookup: map[string]CandidateRecord{"9780141439518": {Source: "secondary", Title: "The Hobbit"}},
	}

	o := NewOrchestrator([]Adapter{slowPrimary, fastSecondary})
	res := o.Resolve(context.Background(), hobbitDraft())

	require.Equal(t, StateMerged, res.State)
	assert.Equal(t, "primary", res.Match.Candidate.Source)
}

func TestResolveIdentifierCancelsLowerPriorityLookups(t *testing.T) {
	primary := &fakeAdapter{
		name:   "primary",
		lookup: map[string]CandidateRecord{"9780141439518": {Source: "primary", Title: "The Hobbit"}},
	}
	slowSecondary := &fakeAdapter{name: "secondary", lookupDelay: 5 * time.Second}

	o := NewOrchestrator([]Adapter{primary, slowSecondary})

	start := time.Now()
	res := o.Resolve(context.Background(), hobbitDraft())

	require.Equal(t, StateMerged, res.State)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Eventually(t, slowSecondary.cancelled.Load, time.Second, 10*time.Millisecond)
}

func TestResolveIdentifierFallsThroughToSecondSource(t *testing.T) {
	primary := &fakeAdapter{name: "primary"}
	secondary := &fakeAdapter{
		name:   "secondary",
		lookup: map[string]CandidateRecord{"9780141439518": {Source: "secondary", Title: "The Hobbit"}},
	}

	o := NewOrchestrator([]Adapter{primary, secondary})
	res := o.Resolve(context.Background(), hobbitDraft())

	require.Equal(t, StateMerged, res.State)
	assert.Equal(t, "secondary", res.Match.Candidate.Source)
	assert.Equal(t, []string{"9780141439518"}, primary.lookups())
}

func TestResolveTriesISBN10AfterISBN13Misses(t *testing.T) {
	primary := &fakeAdapter{
		name:   "primary",
		lookup: map[string]CandidateRecord{"0261103342": {Source: "primary", Title: "The Hobbit"}},
	}

	draft := hobbitDraft()
	draft.ISBN10 = "0261103342"

	o := NewOrchestrator([]Adapter{primary})
	res := o.Resolve(context.Background(), draft)

	require.Equal(t, StateMerged, res.State)
	assert.Equal(t, []string{"9780141439518", "0261103342"}, primary.lookups())
	assert.Zero(t, primary.searchCount())
}

func TestResolveTextSearchFallbackAccepts(t *testing.T) {
	primary := &fakeAdapter{
		name: "primary",
		search: []CandidateRecord{
			{Source: "primary", ExternalID: "x1", Title: "The Hobbit: or There and Back Again", Authors: []string{"J. R. R. Tolkien"}},
			{Source: "primary", ExternalID: "x2", Title: "The Hobbit"},
		},
	}
	secondary := &fakeAdapter{name: "secondary"}

	draft := hobbitDraft()
	draft.ISBN13 = ""

	o := NewOrchestrator([]Adapter{primary, secondary})
	res := o.Resolve(context.Background(), draft)

	require.Equal(t, StateMerged, res.State)
	assert.Equal(t, StateTextSearchFallback, res.Phase)
	assert.Equal(t, "x1", res.Match.Candidate.ExternalID)
	assert.Equal(t, []string{"The Hobbit J.R.R. Tolkien"}, primary.searchQueries)
	assert.Equal(t, []int{1}, primary.searchMax)
	assert.Zero(t, secondary.searchCount(), "fallback only queries the primary source")
	assert.Empty(t, primary.lookups(), "no identifier, no lookup")
}

func TestResolveTextSearchFallbackRejects(t *testing.T) {
	primary := &fakeAdapter{
		name:   "primary",
		search: []CandidateRecord{{Source: "primary", Title: "Harry Potter and the Sorcerer's Stone", Authors: []string{"J.K. Rowling"}}},
	}

	draft := hobbitDraft()
	draft.ISBN13 = ""

	rec := &outcomeRecorder{}
	o := NewOrchestrator([]Adapter{primary}, WithRecorder(rec))
	res := o.Resolve(context.Background(), draft)

	assert.Equal(t, StateUnmatched, res.State)
	assert.Nil(t, res.Match)
	assert.True(t, res.Payload.IsEmpty())
	assert.Equal(t, []string{string(StateUnmatched)}, rec.states)
}

func TestResolveDiscardsCandidatesWithoutTitle(t *testing.T) {
	primary := &fakeAdapter{
		name: "primary",
		search: []CandidateRecord{
			{Source: "primary", Title: ""},
		},
		lookup: map[string]CandidateRecord{"9780141439518": {Source: "primary", Title: " "}},
	}

	o := NewOrchestrator([]Adapter{primary})
	res := o.Resolve(context.Background(), hobbitDraft())

	assert.Equal(t, StateUnmatched, res.State)
}

func TestResolveMissingTitleOrAuthorIsUnmatchedWithoutIO(t *testing.T) {
	primary := &fakeAdapter{name: "primary"}
	o := NewOrchestrator([]Adapter{primary})

	res := o.Resolve(context.Background(), DraftRecord{Title: "The Hobbit", ISBN13: "9780141439518"})

	assert.Equal(t, StateUnmatched, res.State)
	assert.Empty(t, primary.lookups())
	assert.Zero(t, primary.searchCount())
}

func TestResolveWithoutAdapters(t *testing.T) {
	o := NewOrchestrator(nil)
	res := o.Resolve(context.Background(), hobbitDraft())
	assert.Equal(t, StateUnmatched, res.State)
}

func TestEnrichUnmatchedReturnsDraftUnchanged(t *testing.T) {
	draft := DraftRecord{
		Title:       "The Hobbit",
		Author:      "J.R.R. Tolkien",
		ISBN10:      "0261103342",
		ISBN13:      "9780141439518",
		Description: "Signed",
		Categories:  []string{"Fantasy"},
	}
	o := NewOrchestrator([]Adapter{&fakeAdapter{name: "a"}, &fakeAdapter{name: "b"}})

	merged, err := o.Enrich(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, MergedRecord{
		Title:       draft.Title,
		Author:      draft.Author,
		ISBN10:      draft.ISBN10,
		ISBN13:      draft.ISBN13,
		Description: draft.Description,
		Categories:  draft.Categories,
	}, merged)
	assert.False(t, merged.Enriched())
}

func TestEnrichSurvivesPanickingAdapter(t *testing.T) {
	broken := &fakeAdapter{name: "broken", lookupPanic: true, searchPanic: true}
	healthy := &fakeAdapter{
		name:   "healthy",
		lookup: map[string]CandidateRecord{"9780141439518": {Source: "healthy", Title: "The Hobbit", Publisher: "Allen & Unwin"}},
	}

	o := NewOrchestrator([]Adapter{broken, healthy})
	merged, err := o.Enrich(context.Background(), hobbitDraft())

	require.NoError(t, err)
	assert.Equal(t, "Allen & Unwin", merged.Publisher)
	require.NotNil(t, merged.Provenance)
	assert.Equal(t, "healthy", merged.Provenance.Source)

	// With only the broken adapter the call still completes, unmatched.
	o = NewOrchestrator([]Adapter{broken})
	merged, err = o.Enrich(context.Background(), hobbitDraft())
	require.NoError(t, err)
	assert.False(t, merged.Enriched())
	assert.Equal(t, "The Hobbit", merged.Title)
}

func TestEnrichTimesOutHungAdapter(t *testing.T) {
	hung := &fakeAdapter{name: "hung", searchBlock: true}

	draft := hobbitDraft()
	draft.ISBN13 = ""

	o := NewOrchestrator([]Adapter{hung}, WithCallTimeout(20*time.Millisecond))

	start := time.Now()
	merged, err := o.Enrich(context.Background(), draft)
	require.NoError(t, err)
	assert.False(t, merged.Enriched())
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnrichRejectsInvalidDraft(t *testing.T) {
	primary := &fakeAdapter{name: "primary"}
	o := NewOrchestrator([]Adapter{primary})

	_, err := o.Enrich(context.Background(), DraftRecord{Title: "  ", Author: "Someone"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDraft))
	assert.Zero(t, primary.searchCount())
}

func TestLookup(t *testing.T) {
	primary := &fakeAdapter{
		name:   "primary",
		lookup: map[string]CandidateRecord{"0261103342": {Source: "primary", Title: "The Hobbit"}},
	}
	o := NewOrchestrator([]Adapter{primary})

	c, err := o.Lookup(context.Background(), "0261103342")
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", c.Title)

	_, err = o.Lookup(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = o.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestSearchAndSearchAll(t *testing.T) {
	a := &fakeAdapter{name: "a", search: []CandidateRecord{{Source: "a", Title: "A1"}, {Source: "a", Title: ""}}}
	b := &fakeAdapter{name: "b", search: []CandidateRecord{{Source: "b", Title: "B1"}, {Source: "b", Title: "B2"}}}
	broken := &fakeAdapter{name: "broken", searchPanic: true}

	o := NewOrchestrator([]Adapter{a, broken, b})

	results, err := o.Search(context.Background(), "b", "query", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = o.Search(context.Background(), "nope", "query", 5)
	assert.ErrorIs(t, err, ErrUnknownSource)

	all := o.SearchAll(context.Background(), "query", 5)
	titles := make([]string, 0, len(all))
	for _, c := range all {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"A1", "B1", "B2"}, titles)
}
