// Package enrichers implements book.Adapter for the external catalogs
// bookmeta can query.
package enrichers

import (
	"log/slog"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	"github.com/lepinkainen/bookmeta/internal/metrics"
)

// FromConfig builds the adapters named in cfg.Order, in that order.
// ISBNdb is skipped when no API key is configured.
func FromConfig(cfg config.Config, m *metrics.Collector) []book.Adapter {
	breaker := cfg.Breaker

	adapters := make([]book.Adapter, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		src, ok := cfg.Source(name)
		if !ok {
			slog.Warn("Skipping unknown source", "source", name)
			continue
		}

		opts := Options{
			BaseURL:   src.BaseURL,
			APIKey:    src.APIKey,
			RateLimit: src.RateLimit,
			Timeout:   cfg.Timeout,
			Breaker:   &breaker,
			Metrics:   m,
		}

		switch name {
		case config.SourceGoogleBooks:
			adapters = append(adapters, NewGoogleBooks(opts))
		case config.SourceOpenLibrary:
			adapters = append(adapters, NewOpenLibrary(opts))
		case config.SourceISBNdb:
			if src.APIKey == "" {
				slog.Debug("Skipping ISBNdb, no API key configured")
				continue
			}
			adapters = append(adapters, NewISBNdb(opts))
		}
	}
	return adapters
}
