package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/datastore"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	"github.com/lepinkainen/bookmeta/internal/fileutil"
	"github.com/lepinkainen/bookmeta/internal/obsidian"
)

// writeRecords downloads covers, persists and emits merged records in the
// configured format. single selects an object rather than a list for
// JSON and YAML output. dest is an optional output file for the list formats.
func (a *app) writeRecords(ctx context.Context, entries []datastore.Entry, single bool, dest string) error {
	records := make([]book.MergedRecord, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}

	covers := a.downloadCovers(ctx, records)

	if a.cfg.Datastore.Enabled {
		if err := a.saveToDatastore(ctx, entries); err != nil {
			return err
		}
	}

	switch a.cfg.Output.Format {
	case config.FormatMarkdown:
		return a.writeNotes(records, covers)
	case config.FormatParquet:
		if dest == "" {
			dest = filepath.Join(a.cfg.Output.Dir, "books.parquet")
		}
		return a.writeParquet(entries, dest)
	}

	var v any = records
	if single && len(records) == 1 {
		v = records[0]
	}

	if dest != "" {
		var written bool
		var err error
		if a.cfg.Output.Format == config.FormatYAML {
			written, err = fileutil.WriteYAMLFile(v, dest, a.cfg.Output.Overwrite)
		} else {
			written, err = fileutil.WriteJSONFile(v, dest, a.cfg.Output.Overwrite)
		}
		if err != nil {
			return err
		}
		if !written {
			slog.Warn("Output file exists, use --overwrite to replace it", "path", dest)
		}
		return nil
	}

	return a.print(v)
}

// print writes v to stdout as YAML when that format is configured and as
// JSON otherwise.
func (a *app) print(v any) error {
	if a.cfg.Output.Format == config.FormatYAML {
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// downloadCovers returns the saved cover file name per record index.
// Failures are logged and leave the record without a local cover.
func (a *app) downloadCovers(ctx context.Context, records []book.MergedRecord) map[int]string {
	covers := make(map[int]string)
	if !a.cfg.Output.Covers {
		return covers
	}

	d := fileutil.NewCoverDownloader(fileutil.CoverOptions{
		Dir:       a.cfg.Output.CoverPath(),
		MaxWidth:  a.cfg.Output.CoverWidth,
		Overwrite: a.cfg.Output.Overwrite,
	})

	for i, m := range records {
		if len(m.Images) == 0 {
			continue
		}
		result, err := d.Download(ctx, m.Title, m.Images)
		if err != nil {
			slog.Warn("Failed to download cover", "title", m.Title, "error", err)
			continue
		}
		covers[i] = result.Filename
	}
	return covers
}

func (a *app) saveToDatastore(ctx context.Context, entries []datastore.Entry) error {
	store := datastore.NewSQLiteStore(a.cfg.Datastore.DBFile)
	if err := store.Connect(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := datastore.SaveBooks(ctx, store, entries, now()); err != nil {
		return fmt.Errorf("saving to %s: %w", a.cfg.Datastore.DBFile, err)
	}

	total, err := store.Count(ctx, datastore.BooksTable)
	if err != nil {
		return err
	}
	slog.Info("Saved records to datastore", "count", len(entries), "total", total, "path", a.cfg.Datastore.DBFile)
	return nil
}

// writeNotes writes one markdown note per record. An existing note is only
// touched with overwrite, and then keeps its user-owned frontmatter.
func (a *app) writeNotes(records []book.MergedRecord, covers map[int]string) error {
	for i, m := range records {
		path := filepath.Join(a.cfg.Output.Dir, obsidian.Filename(m))
		note := obsidian.BookNote(m, covers[i])

		if fileutil.FileExists(path) {
			if !a.cfg.Output.Overwrite {
				slog.Info("Note exists, skipping", "path", path)
				continue
			}
			existing, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if note, err = obsidian.MergeExisting(existing, note); err != nil {
				return fmt.Errorf("merging %s: %w", path, err)
			}
		}

		content, err := note.Build()
		if err != nil {
			return err
		}
		if _, err := fileutil.WriteFileWithOverwrite(path, content, 0o644, true); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, path)
	}
	return nil
}

func (a *app) writeParquet(entries []datastore.Entry, path string) error {
	if fileutil.FileExists(path) && !a.cfg.Output.Overwrite {
		return fmt.Errorf("%s exists, use --overwrite to replace it", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := datastore.WriteParquet(f, entries, now()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	slog.Info("Wrote parquet file", "path", path, "rows", len(entries))
	_, _ = fmt.Fprintln(a.out, path)
	return nil
}
