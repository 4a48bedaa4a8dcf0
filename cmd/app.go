package cmd

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichers"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	"github.com/lepinkainen/bookmeta/internal/metrics"
)

var (
	newApp           = buildApp
	stdout io.Writer = os.Stdout
	now              = time.Now
)

// app holds what every command needs.
type app struct {
	cfg     config.Config
	metrics *metrics.Collector
	orch    *book.Orchestrator
	out     io.Writer
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	adapters := enrichers.FromConfig(cfg, m)
	if len(adapters) == 0 {
		slog.Warn("No sources configured, records will pass through unchanged")
	}

	return newAppWith(cfg, m, adapters), nil
}

func newAppWith(cfg config.Config, m *metrics.Collector, adapters []book.Adapter) *app {
	orch := book.NewOrchestrator(adapters,
		book.WithCallTimeout(cfg.Timeout),
		book.WithRecorder(m),
		book.WithLogger(slog.Default()),
	)
	return &app{cfg: cfg, metrics: m, orch: orch, out: stdout}
}
