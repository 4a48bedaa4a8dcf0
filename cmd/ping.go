package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

// PingCmd checks every configured source
type PingCmd struct{}

type pingResult struct {
	source string
	took   time.Duration
	err    error
}

func (p *PingCmd) Run(ctx context.Context, a *app) error {
	adapters := a.orch.Adapters()
	if len(adapters) == 0 {
		return fmt.Errorf("no sources configured")
	}

	results := make([]pingResult, len(adapters))

	var g errgroup.Group
	for i, adapter := range adapters {
		g.Go(func() error {
			results[i] = pingOne(ctx, adapter)
			return nil
		})
	}
	_ = g.Wait()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tSTATUS\tTIME")

	failed := 0
	for _, r := range results {
		status := "ok"
		if r.err != nil {
			failed++
			status = r.err.Error()
			slog.Debug("Ping failed", "source", r.source, "error", r.err)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.source, status, r.took.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources unreachable", failed, len(results))
	}
	return nil
}

func pingOne(ctx context.Context, adapter book.Adapter) pingResult {
	result := pingResult{source: adapter.Name()}

	pinger, ok := adapter.(book.Pinger)
	if !ok {
		result.err = fmt.Errorf("ping not supported")
		return result
	}

	start := time.Now()
	result.err = pinger.Ping(ctx)
	result.took = time.Since(start)
	return result
}
