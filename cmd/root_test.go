package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	"github.com/lepinkainen/bookmeta/internal/testutil"
)

func resetCmdState(t *testing.T) {
	testutil.ResetConfig(t)

	// Keep the developer's keys out of the tests
	t.Setenv("GOOGLE_BOOKS_API_KEY", "")
	t.Setenv("ISBNDB_API_KEY", "")
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"bookmeta"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bookmeta"),
		kong.Description("Enrich book records with metadata from external catalogs."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

func TestUpdateGlobalConfig(t *testing.T) {
	resetCmdState(t)

	cli := &CLI{
		Format:    "yaml",
		OutputDir: "/tmp/books",
		Overwrite: true,
		Covers:    true,
		DB:        "/tmp/bookmeta.db",
		Timeout:   3 * time.Second,
		Sources:   []string{"openlibrary"},
	}

	updateGlobalConfig(cli)

	assert.Equal(t, "yaml", viper.GetString("output.format"))
	assert.Equal(t, "/tmp/books", viper.GetString("output.dir"))
	assert.True(t, viper.GetBool("output.overwrite"))
	assert.True(t, viper.GetBool("output.covers"))
	assert.True(t, viper.GetBool("datastore.enabled"))
	assert.Equal(t, "/tmp/bookmeta.db", viper.GetString("datastore.dbfile"))
	assert.Equal(t, 3*time.Second, viper.GetDuration("sources.timeout"))
	assert.Equal(t, []string{"openlibrary"}, viper.GetStringSlice("sources.order"))
}

func TestUpdateGlobalConfigLeavesUnsetFlags(t *testing.T) {
	resetCmdState(t)
	config.SetDefaults()

	updateGlobalConfig(&CLI{})

	assert.Equal(t, config.FormatJSON, viper.GetString("output.format"))
	assert.False(t, viper.GetBool("datastore.enabled"))
	assert.Equal(t, config.KnownSources, viper.GetStringSlice("sources.order"))
}

func TestEnrichCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "enrich", "-t", "The Hobbit", "-a", "Tolkien",
		"--isbn13", "9780007458424", "--category", "Fantasy", "--category", "Classics")

	assert.Equal(t, "enrich", ctx.Command())
	assert.Equal(t, "The Hobbit", cli.Enrich.Title)
	assert.Equal(t, "Tolkien", cli.Enrich.Author)
	assert.Equal(t, "9780007458424", cli.Enrich.ISBN13)
	assert.Equal(t, []string{"Fantasy", "Classics"}, cli.Enrich.Categories)
}

func TestBatchCommandParsing(t *testing.T) {
	resetCmdState(t)

	input := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(input, []byte("title,author\n"), 0o644))

	cli, ctx := parseCLI(t, "--format", "parquet", "batch", "-f", input, "-o", "out.parquet", "-c", "8")

	assert.Equal(t, "batch", ctx.Command())
	assert.Equal(t, "parquet", cli.Format)
	assert.Equal(t, input, cli.Batch.Input)
	assert.Equal(t, 8, cli.Batch.Concurrency)
	assert.True(t, filepath.IsAbs(cli.Batch.Output))
}

func TestSearchCommandDefaults(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "search", "dune herbert")

	assert.Equal(t, "search <query>", ctx.Command())
	assert.Equal(t, "dune herbert", cli.Search.Query)
	assert.Equal(t, allSources, cli.Search.Source)
	assert.Zero(t, cli.Search.Max)
	assert.False(t, cli.Search.Interactive)
	assert.Empty(t, cli.Search.Title)

	cli, _ = parseCLI(t, "search", "dune herbert", "--title", "Dune")
	assert.Equal(t, "Dune", cli.Search.Title)
}

func TestGlobalFlagsParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "--log-level", "debug", "--timeout", "2s", "--sources", "openlibrary,googlebooks", "isbn", "0441172717")

	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, 2*time.Second, cli.Timeout)
	assert.Equal(t, []string{"openlibrary", "googlebooks"}, cli.Sources)
	assert.Equal(t, "0441172717", cli.ISBN.ISBN)
}

func TestInitConfigBindsCatalogEnv(t *testing.T) {
	resetCmdState(t)
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_BOOKS_API_KEY", "google-key")
	t.Setenv("BOOKMETA_ISBNDB_API_KEY", "isbndb-key")
	t.Setenv("BOOKMETA_SOURCES_MAX_RESULTS", "3")

	require.NoError(t, initConfig(""))

	assert.Equal(t, "google-key", viper.GetString("googlebooks.api_key"))
	assert.Equal(t, "isbndb-key", viper.GetString("isbndb.api_key"))
	assert.Equal(t, 3, viper.GetInt("sources.max_results"))
}

func TestInitConfigReadsFile(t *testing.T) {
	resetCmdState(t)

	path := filepath.Join(t.TempDir(), "bookmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  order: [openlibrary]
  timeout: 4s
output:
  format: markdown
`), 0o644))

	require.NoError(t, initConfig(path))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"openlibrary"}, cfg.Order)
	assert.Equal(t, 4*time.Second, cfg.Timeout)
	assert.Equal(t, config.FormatMarkdown, cfg.Output.Format)
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	resetCmdState(t)

	err := initConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunWritesMetricsFile(t *testing.T) {
	resetCmdState(t)

	_, kctx := parseCLI(t, "enrich", "-t", "The Hobbit", "-a", "J.R.R. Tolkien", "--isbn13", "9780007458424")

	a, out := testApp(t, testConfig(t), hobbitSource())
	path := filepath.Join(t.TempDir(), "bookmeta.prom")

	require.NoError(t, run(context.Background(), kctx, a, path))
	assert.Contains(t, out.String(), `"publisher": "HarperCollins"`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bookmeta_enrichment_outcomes_total{state="merged"} 1`)
}

func TestRunReturnsCommandError(t *testing.T) {
	resetCmdState(t)

	_, kctx := parseCLI(t, "isbn", "0000000000")
	a, _ := testApp(t, testConfig(t), hobbitSource())

	err := run(context.Background(), kctx, a, "")
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestBuildAppUsesConfig(t *testing.T) {
	resetCmdState(t)
	config.SetDefaults()
	viper.Set("sources.order", []string{"openlibrary"})

	a, err := buildApp()
	require.NoError(t, err)

	require.Len(t, a.orch.Adapters(), 1)
	assert.Equal(t, "openlibrary", a.orch.Adapters()[0].Name())
	assert.NotNil(t, a.metrics)
}

func TestBuildAppDatastoreFromConfig(t *testing.T) {
	resetCmdState(t)
	config.SetDefaults()

	env := testutil.NewTestEnv(t)
	dbPath := testutil.SetupDatastore(t, env)
	testutil.SetViperValue(t, "output.format", config.FormatYAML)

	a, err := buildApp()
	require.NoError(t, err)

	assert.True(t, a.cfg.Datastore.Enabled)
	assert.Equal(t, dbPath, a.cfg.Datastore.DBFile)
	assert.Equal(t, config.FormatYAML, a.cfg.Output.Format)
}
