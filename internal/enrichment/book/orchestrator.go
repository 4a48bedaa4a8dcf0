package book

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultCallTimeout bounds every adapter call when no timeout is configured.
const DefaultCallTimeout = 10 * time.Second

// State is a step of the enrichment state machine.
type State string

const (
	StateIdentifierLookup   State = "identifier_lookup"
	StateTextSearchFallback State = "text_search_fallback"
	StateMerged             State = "merged"
	StateUnmatched          State = "unmatched"
)

// Resolution is the terminal outcome of one enrichment.
type Resolution struct {
	// State is StateMerged or StateUnmatched.
	State State
	// Phase is the state that produced the match. Empty when unmatched.
	Phase State
	// Match is nil when unmatched. Identifier hits carry Accepted=true and Score=1.
	Match   *MatchResult
	Payload EnrichmentPayload
}

// Orchestrator drives identifier lookup with a fuzzy text-search fallback
// across a priority-ordered list of adapters. It holds no per-call state and
// is safe for concurrent use.
type Orchestrator struct {
	adapters []Adapter
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout sets the per-adapter-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRecorder sets the sink for terminal states.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator. adapters are consulted in the
// given order; the first one is the text-search primary.
func NewOrchestrator(adapters []Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters: append([]Adapter(nil), adapters...),
		timeout:  DefaultCallTimeout,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Adapters returns the configured adapters in priority order.
func (o *Orchestrator) Adapters() []Adapter {
	return append([]Adapter(nil), o.adapters...)
}

// Enrich validates the draft, resolves it against the configured sources
// and merges the result. The only error it returns is ErrInvalidDraft;
// source failures and misses yield a record equal to the draft.
func (o *Orchestrator) Enrich(ctx context.Context, draft DraftRecord) (MergedRecord, error) {
	if err := draft.Validate(); err != nil {
		return MergedRecord{}, err
	}
	res := o.Resolve(ctx, draft)
	return Merge(draft, res.Payload), nil
}

// Resolve runs the state machine for a draft without merging.
func (o *Orchestrator) Resolve(ctx context.Context, draft DraftRecord) Resolution {
	logger := o.logger.With("enrichment_id", uuid.NewString(), "title", draft.Title)

	res := o.resolve(ctx, logger, draft)
	o.recorder.RecordOutcome(string(res.State))

	if res.State == StateMerged {
		logger.Debug("Enrichment matched",
			"phase", res.Phase,
			"source", res.Match.Candidate.Source,
			"external_id", res.Match.Candidate.ExternalID,
			"score", res.Match.Score,
		)
	} else {
		logger.Debug("Enrichment found no match")
	}

	return res
}

func (o *Orchestrator) resolve(ctx context.Context, logger *slog.Logger, draft DraftRecord) Resolution {
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Author) == "" {
		logger.Warn("Draft is missing title or author, skipping enrichment")
		return Resolution{State: StateUnmatched}
	}

	for _, isbn := range draft.Identifiers() {
		if candidate, ok := o.lookup(ctx, logger, isbn); ok {
			match := MatchResult{Candidate: candidate, Score: 1, Accepted: true}
			return merged(StateIdentifierLookup, match)
		}
	}

	if len(o.adapters) == 0 {
		return Resolution{State: StateUnmatched}
	}

	primary := o.adapters[0]
	query := draft.Title + " " + draft.Author
	candidates, _ := callAdapter(ctx, o.timeout, func(ctx context.Context) []CandidateRecord {
		return primary.SearchByText(ctx, query, 1)
	}, o.panicHandler(logger, primary.Name(), "search"))

	candidates = validCandidates(candidates)
	if len(candidates) == 0 {
		logger.Debug("Text search returned no candidates", "source", primary.Name(), "query", query)
		return Resolution{State: StateUnmatched}
	}

	match := Evaluate(draft.Title, draft.Author, candidates[0])
	if !match.Accepted {
		logger.Debug("Text search candidate rejected",
			"source", primary.Name(),
			"candidate_title", match.Candidate.Title,
			"score", match.Score,
		)
		return Resolution{State: StateUnmatched}
	}

	return merged(StateTextSearchFallback, match)
}

func merged(phase State, match MatchResult) Resolution {
	return Resolution{
		State:   StateMerged,
		Phase:   phase,
		Match:   &match,
		Payload: NewPayload(match.Candidate),
	}
}

// Lookup resolves an ISBN against the adapters and returns the hit from the
// highest-priority adapter that knows it.
func (o *Orchestrator) Lookup(ctx context.Context, isbn string) (CandidateRecord, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return CandidateRecord{}, fmt.Errorf("%w: empty ISBN", ErrBookNotFound)
	}
	logger := o.logger.With("isbn", isbn)
	if candidate, ok := o.lookup(ctx, logger, isbn); ok {
		return candidate, nil
	}
	return CandidateRecord{}, fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
}

type lookupOutcome struct {
	index     int
	candidate CandidateRecord
	found     bool
}

// lookup dispatches the identifier to every adapter concurrently. The winner
// is the lowest-index hit, decided as soon as every higher-priority adapter
// has answered; lookups still in flight are then cancelled.
func (o *Orchestrator) lookup(ctx context.Context, logger *slog.Logger, isbn string) (CandidateRecord, bool) {
	n := len(o.adapters)
	if n == 0 {
		return CandidateRecord{}, false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan lookupOutcome, n)
	for i, adapter := range o.adapters {
		go func() {
			type hit struct {
				candidate CandidateRecord
				found     bool
			}
			h, _ := callAdapter(ctx, o.timeout, func(ctx context.Context) hit {
				c, ok := adapter.LookupByIdentifier(ctx, isbn)
				return hit{candidate: c, found: ok}
			}, o.panicHandler(logger, adapter.Name(), "lookup"))
			outcomes <- lookupOutcome{index: i, candidate: h.candidate, found: h.found && h.candidate.Valid()}
		}()
	}

	answered := make([]bool, n)
	hits := make([]*CandidateRecord, n)
	for range n {
		out := <-outcomes
		answered[out.index] = true
		if out.found {
			c := out.candidate
			hits[out.index] = &c
		}

		for i := range n {
			if !answered[i] {
				break
			}
			if hits[i] != nil {
				logger.Debug("Identifier lookup hit", "source", o.adapters[i].Name(), "isbn", isbn)
				return *hits[i], true
			}
		}
	}

	logger.Debug("Identifier lookup missed on all sources", "isbn", isbn)
	return CandidateRecord{}, false
}

// Search runs a text search on the named adapter.
func (o *Orchestrator) Search(ctx context.Context, source, query string, maxResults int) ([]CandidateRecord, error) {
	for _, adapter := range o.adapters {
		if adapter.Name() != source {
			continue
		}
		candidates, _ := callAdapter(ctx, o.timeout, func(ctx context.Context) []CandidateRecord {
			return adapter.SearchByText(ctx, query, maxResults)
		}, o.panicHandler(o.logger, adapter.Name(), "search"))
		return validCandidates(candidates), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
}

// SearchAll runs a text search on every adapter concurrently and
// concatenates the results in priority order. Results are neither re-ranked
// nor deduplicated.
func (o *Orchestrator) SearchAll(ctx context.Context, query string, maxResults int) []CandidateRecord {
	perSource := make([][]CandidateRecord, len(o.adapters))

	var g errgroup.Group
	for i, adapter := range o.adapters {
		g.Go(func() error {
			candidates, _ := callAdapter(ctx, o.timeout, func(ctx context.Context) []CandidateRecord {
				return adapter.SearchByText(ctx, query, maxResults)
			}, o.panicHandler(o.logger, adapter.Name(), "search"))
			perSource[i] = validCandidates(candidates)
			return nil
		})
	}
	_ = g.Wait()

	var all []CandidateRecord
	for _, candidates := range perSource {
		all = append(all, candidates...)
	}
	return all
}

func (o *Orchestrator) panicHandler(logger *slog.Logger, source, operation string) func(any) {
	return func(r any) {
		logger.Warn("Source adapter panicked", "source", source, "operation", operation, "panic", r)
	}
}

// callAdapter runs fn under its own timeout. A call that times out or
// panics yields the zero value and false.
func callAdapter[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) T, onPanic func(any)) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		ok    bool
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				onPanic(r)
				done <- result{}
			}
		}()
		done <- result{value: fn(ctx), ok: true}
	}()

	select {
	case r := <-done:
		return r.value, r.ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

func validCandidates(candidates []CandidateRecord) []CandidateRecord {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}
