package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/bookmeta/internal/csvutil"
	"github.com/lepinkainen/bookmeta/internal/datastore"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

var readDrafts = csvutil.ReadDraftsFile

// BatchCmd enriches every row of a CSV file
type BatchCmd struct {
	Input       string `short:"f" help:"CSV file with title,author,isbn10,isbn13,description,categories columns" required:"" type:"existingfile"`
	Output      string `short:"o" help:"Write JSON, YAML or parquet output to this file" type:"path"`
	Concurrency int    `short:"c" help:"Number of books enriched at once (defaults to batch.concurrency)"`
}

func (b *BatchCmd) Run(ctx context.Context, a *app) error {
	drafts, err := readDrafts(b.Input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", b.Input, err)
	}
	if len(drafts) == 0 {
		slog.Warn("No valid records in input", "path", b.Input)
		return nil
	}

	limit := b.Concurrency
	if limit <= 0 {
		limit = a.cfg.BatchConcurrency
	}
	if limit <= 0 {
		limit = 1
	}

	slog.Info("Enriching books", "count", len(drafts), "concurrency", limit)

	records, err := enrichAll(ctx, a.orch, drafts, limit)
	if err != nil {
		return err
	}

	entries := make([]datastore.Entry, len(records))
	matched := 0
	for i, r := range records {
		entries[i] = datastore.Entry{Draft: drafts[i], Record: r}
		if r.Enriched() {
			matched++
		}
	}
	slog.Info("Batch finished", "total", len(records), "matched", matched, "unmatched", len(records)-matched)

	return a.writeRecords(ctx, entries, false, b.Output)
}

// enrichAll enriches drafts with at most limit in flight. Results keep the
// input order.
func enrichAll(ctx context.Context, orch *book.Orchestrator, drafts []book.DraftRecord, limit int) ([]book.MergedRecord, error) {
	records := make([]book.MergedRecord, len(drafts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, draft := range drafts {
		g.Go(func() error {
			merged, err := orch.Enrich(ctx, draft)
			if err != nil {
				return fmt.Errorf("record %d (%q): %w", i+1, draft.Title, err)
			}
			records[i] = merged
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
