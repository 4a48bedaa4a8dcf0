package enrichers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

func names(adapters []book.Adapter) []string {
	out := make([]string, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.Name())
	}
	return out
}

func TestFromConfigFollowsOrder(t *testing.T) {
	cfg := config.Config{
		Order:   []string{"openlibrary", "isbndb", "googlebooks"},
		Timeout: time.Second,
		ISBNdb:  config.SourceConfig{APIKey: "key"},
	}

	adapters := FromConfig(cfg, nil)
	assert.Equal(t, []string{"openlibrary", "isbndb", "googlebooks"}, names(adapters))

	for _, a := range adapters {
		_, ok := a.(book.Pinger)
		assert.True(t, ok, "%s should implement Pinger", a.Name())
	}
}

func TestFromConfigSkipsISBNdbWithoutKey(t *testing.T) {
	cfg := config.Config{
		Order:   config.KnownSources,
		Timeout: time.Second,
	}

	assert.Equal(t, []string{"googlebooks", "openlibrary"}, names(FromConfig(cfg, nil)))
}

func TestFromConfigSkipsUnknownSources(t *testing.T) {
	cfg := config.Config{Order: []string{"goodreads", "openlibrary"}, Timeout: time.Second}
	assert.Equal(t, []string{"openlibrary"}, names(FromConfig(cfg, nil)))
}

func TestAdaptersUseConfiguredBaseURL(t *testing.T) {
	cfg := config.Config{
		Order:       []string{"googlebooks"},
		Timeout:     time.Second,
		GoogleBooks: config.SourceConfig{BaseURL: "http://127.0.0.1:1/books/v1"},
	}

	adapters := FromConfig(cfg, nil)
	g, ok := adapters[0].(*GoogleBooks)
	if assert.True(t, ok) {
		assert.Equal(t, "http://127.0.0.1:1/books/v1", g.baseURL)
	}
}
