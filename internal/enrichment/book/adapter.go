package book

import "context"

// Adapter talks to exactly one external catalog and normalizes its
// responses into CandidateRecords.
//
// Adapters never surface failures through this interface. Transport and
// parse errors are reported through logs and metrics, and the call
// degrades to an empty result or "not found".
type Adapter interface {
	// Name returns the source tag stamped on every candidate (e.g. "googlebooks").
	Name() string

	// SearchByText runs a free-text query and returns at most maxResults
	// candidates in the catalog's own relevance order.
	SearchByText(ctx context.Context, query string, maxResults int) []CandidateRecord

	// LookupByIdentifier resolves an ISBN-10 or ISBN-13 exactly as supplied.
	// The boolean is false when the catalog has no such book or the call failed.
	LookupByIdentifier(ctx context.Context, isbn string) (CandidateRecord, bool)
}

// Pinger is implemented by adapters that can check whether their catalog
// is reachable. Unlike the Adapter methods, Ping returns its error.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Recorder receives the terminal state of every enrichment.
type Recorder interface {
	RecordOutcome(state string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string) {}
