package cmd

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	errs "github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/tui"
)

const allSources = "all"

var selectCandidate = tui.SelectCandidate

// SearchCmd searches the catalogs by free text
type SearchCmd struct {
	Query       string `arg:"" help:"Search text, usually title and author"`
	Title       string `help:"Title used to score the results (defaults to the query)"`
	Author      string `help:"Author used to score the results"`
	Source      string `short:"s" help:"Source to search, or 'all'" default:"all"`
	Max         int    `short:"n" help:"Maximum results per source (defaults to sources.max_results)"`
	Interactive bool   `short:"i" help:"Pick one result in an interactive list"`
}

func (s *SearchCmd) Run(ctx context.Context, a *app) error {
	limit := s.Max
	if limit <= 0 {
		limit = a.cfg.MaxResults
	}

	var candidates []book.CandidateRecord
	if s.Source == allSources {
		candidates = a.orch.SearchAll(ctx, s.Query, limit)
	} else {
		var err error
		if candidates, err = a.orch.Search(ctx, s.Source, s.Query, limit); err != nil {
			return err
		}
	}

	target := s.Title
	if target == "" {
		target = s.Query
	}

	results := make([]book.MatchResult, len(candidates))
	for i, c := range candidates {
		results[i] = book.Evaluate(target, s.Author, c)
	}

	if !s.Interactive {
		return a.print(results)
	}

	selection, err := selectCandidate(s.Query, results)
	if err != nil {
		if errs.IsStopProcessingError(err) {
			slog.Info("Search stopped")
			return nil
		}
		return err
	}
	if selection.Action != tui.ActionSelected || selection.Selection == nil {
		slog.Info("No candidate selected")
		return nil
	}

	return a.print(selection.Selection.Candidate)
}
