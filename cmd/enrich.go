package cmd

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/bookmeta/internal/datastore"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

// EnrichCmd enriches one book given on the command line
type EnrichCmd struct {
	Title       string   `short:"t" help:"Book title" required:""`
	Author      string   `short:"a" help:"Book author" required:""`
	ISBN10      string   `name:"isbn10" help:"ISBN-10"`
	ISBN13      string   `name:"isbn13" help:"ISBN-13"`
	Description string   `help:"Description to keep instead of the catalog's"`
	Categories  []string `name:"category" help:"Category to keep instead of the catalog's (repeatable)"`
	Output      string   `short:"o" help:"Write the result to this file instead of stdout" type:"path"`
}

func (e *EnrichCmd) draft() book.DraftRecord {
	return book.DraftRecord{
		Title:       e.Title,
		Author:      e.Author,
		ISBN10:      e.ISBN10,
		ISBN13:      e.ISBN13,
		Description: e.Description,
		Categories:  e.Categories,
	}
}

func (e *EnrichCmd) Run(ctx context.Context, a *app) error {
	draft := e.draft()
	merged, err := a.orch.Enrich(ctx, draft)
	if err != nil {
		return err
	}

	if merged.Enriched() {
		slog.Info("Enriched book", "title", merged.Title, "source", merged.Provenance.Source)
	} else {
		slog.Info("No match found, keeping the record as given", "title", merged.Title)
	}

	return a.writeRecords(ctx, []datastore.Entry{{Draft: draft, Record: merged}}, true, e.Output)
}
