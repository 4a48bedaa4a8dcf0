// Package config maps viper settings onto a typed configuration.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source names accepted in sources.order.
const (
	SourceGoogleBooks = "googlebooks"
	SourceOpenLibrary = "openlibrary"
	SourceISBNdb      = "isbndb"
)

// KnownSources lists every source name in default priority order.
var KnownSources = []string{SourceGoogleBooks, SourceOpenLibrary, SourceISBNdb}

// Output formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatParquet  = "parquet"
)

// Config is the full bookmeta configuration.
type Config struct {
	Order      []string
	Timeout    time.Duration
	MaxResults int

	GoogleBooks SourceConfig
	OpenLibrary SourceConfig
	ISBNdb      SourceConfig

	Breaker   BreakerConfig
	Output    OutputConfig
	Datastore DatastoreConfig

	BatchConcurrency int
}

// SourceConfig configures one catalog.
type SourceConfig struct {
	APIKey  string
	BaseURL string
	// RateLimit is requests per second. Zero or less means unlimited.
	RateLimit float64
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Format string
	Dir    string
	// Covers enables downloading the primary cover image.
	Covers bool
	// CoverDir defaults to a "covers" directory under Dir.
	CoverDir   string
	CoverWidth int
	Overwrite  bool
}

// CoverPath returns the directory covers are saved to.
func (o OutputConfig) CoverPath() string {
	if o.CoverDir != "" {
		return o.CoverDir
	}
	return filepath.Join(o.Dir, "covers")
}

// DatastoreConfig controls sqlite persistence of merged records.
type DatastoreConfig struct {
	Enabled bool
	DBFile  string
}

// SetDefaults registers the default value of every key on the global viper.
func SetDefaults() {
	viper.SetDefault("sources.order", KnownSources)
	viper.SetDefault("sources.timeout", "10s")
	viper.SetDefault("sources.max_results", 10)

	viper.SetDefault("googlebooks.base_url", "https://www.googleapis.com/books/v1")
	viper.SetDefault("googlebooks.rate_limit", 1)
	viper.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	viper.SetDefault("openlibrary.rate_limit", 1)
	viper.SetDefault("isbndb.base_url", "https://api2.isbndb.com")
	viper.SetDefault("isbndb.rate_limit", 1)

	viper.SetDefault("breaker.enabled", true)
	viper.SetDefault("breaker.max_requests", 1)
	viper.SetDefault("breaker.interval", "60s")
	viper.SetDefault("breaker.timeout", "30s")
	viper.SetDefault("breaker.failure_ratio", 0.6)
	viper.SetDefault("breaker.min_requests", 5)

	viper.SetDefault("output.format", FormatJSON)
	viper.SetDefault("output.dir", "./books/")
	viper.SetDefault("output.covers", false)
	viper.SetDefault("output.cover_dir", "")
	viper.SetDefault("output.cover_width", 600)
	viper.SetDefault("output.overwrite", false)

	viper.SetDefault("datastore.enabled", false)
	viper.SetDefault("datastore.dbfile", "./bookmeta.db")

	viper.SetDefault("batch.concurrency", 4)
}

// Load reads the configuration from the global viper and validates it.
func Load() (Config, error) {
	cfg := Config{
		Order:      normalizeOrder(viper.GetStringSlice("sources.order")),
		Timeout:    viper.GetDuration("sources.timeout"),
		MaxResults: viper.GetInt("sources.max_results"),

		GoogleBooks: loadSource(SourceGoogleBooks),
		OpenLibrary: loadSource(SourceOpenLibrary),
		ISBNdb:      loadSource(SourceISBNdb),

		Breaker: BreakerConfig{
			Enabled:      viper.GetBool("breaker.enabled"),
			MaxRequests:  viper.GetUint32("breaker.max_requests"),
			Interval:     viper.GetDuration("breaker.interval"),
			Timeout:      viper.GetDuration("breaker.timeout"),
			FailureRatio: viper.GetFloat64("breaker.failure_ratio"),
			MinRequests:  viper.GetUint32("breaker.min_requests"),
		},
		Output: OutputConfig{
			Format:     strings.ToLower(strings.TrimSpace(viper.GetString("output.format"))),
			Dir:        viper.GetString("output.dir"),
			Covers:     viper.GetBool("output.covers"),
			CoverDir:   viper.GetString("output.cover_dir"),
			CoverWidth: viper.GetInt("output.cover_width"),
			Overwrite:  viper.GetBool("output.overwrite"),
		},
		Datastore: DatastoreConfig{
			Enabled: viper.GetBool("datastore.enabled"),
			DBFile:  viper.GetString("datastore.dbfile"),
		},
		BatchConcurrency: viper.GetInt("batch.concurrency"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c Config) Validate() error {
	for _, name := range c.Order {
		if !slices.Contains(KnownSources, name) {
			return fmt.Errorf("unknown source %q in sources.order (known: %s)", name, strings.Join(KnownSources, ", "))
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("sources.timeout must be positive, got %s", c.Timeout)
	}
	switch c.Output.Format {
	case FormatJSON, FormatYAML, FormatMarkdown, FormatParquet:
	default:
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failure_ratio must be within [0, 1], got %v", c.Breaker.FailureRatio)
	}
	return nil
}

// Source returns the configuration of the named source.
func (c Config) Source(name string) (SourceConfig, bool) {
	switch name {
	case SourceGoogleBooks:
		return c.GoogleBooks, true
	case SourceOpenLibrary:
		return c.OpenLibrary, true
	case SourceISBNdb:
		return c.ISBNdb, true
	}
	return SourceConfig{}, false
}

func loadSource(name string) SourceConfig {
	return SourceConfig{
		APIKey:    viper.GetString(name + ".api_key"),
		BaseURL:   strings.TrimRight(viper.GetString(name+".base_url"), "/"),
		RateLimit: viper.GetFloat64(name + ".rate_limit"),
	}
}

// normalizeOrder lowercases names and drops blanks and duplicates.
func normalizeOrder(order []string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
