// Package cmd wires the bookmeta command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookmeta/internal/config"
)

// CLI represents the complete command structure for the bookmeta application
type CLI struct {
	// Global flags
	LogLevel    string        `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	Config      string        `help:"Path to config file (defaults to ./config.yaml when present)" type:"path"`
	Format      string        `help:"Output format: json, yaml, markdown or parquet"`
	OutputDir   string        `help:"Directory for markdown notes, parquet files and covers"`
	Overwrite   bool          `help:"Overwrite existing output files"`
	Covers      bool          `help:"Download and resize cover images"`
	DB          string        `help:"SQLite database file; enables persistence of merged records" type:"path"`
	MetricsFile string        `help:"Write Prometheus metrics in text format to this file after the command" type:"path"`
	Timeout     time.Duration `help:"Timeout for each call to an external catalog"`
	Sources     []string      `help:"Source priority order, e.g. --sources=openlibrary,googlebooks"`

	Enrich EnrichCmd `cmd:"" help:"Enrich a single book record"`
	Batch  BatchCmd  `cmd:"" help:"Enrich every book in a CSV file"`
	Search SearchCmd `cmd:"" help:"Search external catalogs by text"`
	ISBN   ISBNCmd   `cmd:"" name:"isbn" help:"Look up a book by ISBN"`
	Ping   PingCmd   `cmd:"" help:"Check that the configured catalogs are reachable"`
}

// Execute runs the Kong-based CLI
func Execute() {
	// A missing .env file is fine
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bookmeta"),
		kong.Description("Enrich book records with metadata from external catalogs."),
		kong.UsageOnError(),
	)

	initLogging(cli.LogLevel)

	if err := initConfig(cli.Config); err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	a, err := newApp()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, kctx, a, cli.MetricsFile)
	if err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run executes the selected command and writes metrics afterwards, also
// when the command failed.
func run(ctx context.Context, kctx *kong.Context, a *app, metricsFile string) error {
	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run(a)

	if metricsFile != "" {
		if merr := prometheus.WriteToTextfile(metricsFile, a.metrics.Registry()); merr != nil {
			err = errors.Join(err, fmt.Errorf("writing metrics to %s: %w", metricsFile, merr))
		}
	}
	return err
}

func initLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	// Logs go to stderr so stdout can be piped
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: lvl,
	})

	slog.SetDefault(slog.New(handler))
}

func initConfig(path string) error {
	config.SetDefaults()

	viper.SetEnvPrefix("BOOKMETA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind the catalogs' conventional variable names as well
	envBindings := map[string][]string{
		"googlebooks.api_key": {"BOOKMETA_GOOGLEBOOKS_API_KEY", "GOOGLE_BOOKS_API_KEY"},
		"isbndb.api_key":      {"BOOKMETA_ISBNDB_API_KEY", "ISBNDB_API_KEY"},
	}
	for key, envs := range envBindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "error", err)
		}
	}

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Debug("Config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	slog.Debug("Using config file", "path", viper.ConfigFileUsed())
	return nil
}

func updateGlobalConfig(cli *CLI) {
	if cli.Format != "" {
		viper.Set("output.format", cli.Format)
	}
	if cli.OutputDir != "" {
		viper.Set("output.dir", cli.OutputDir)
	}
	if cli.Overwrite {
		viper.Set("output.overwrite", true)
	}
	if cli.DB != "" {
		viper.Set("datastore.enabled", true)
		viper.Set("datastore.dbfile", cli.DB)
	}
	if cli.Timeout > 0 {
		viper.Set("sources.timeout", cli.Timeout)
	}
	if len(cli.Sources) > 0 {
		viper.Set("sources.order", cli.Sources)
	}
	if cli.Covers {
		viper.Set("output.covers", true)
	}
}
