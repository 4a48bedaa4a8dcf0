// Package csvutil reads header-addressed CSV files into typed records.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrEmptyFile is returned for input without a header row.
var ErrEmptyFile = errors.New("CSV file is empty")

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// Required lists header columns that must be present.
	Required []string

	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool
}

// Row is one CSV record addressed by header name.
type Row struct {
	// Line is the 1-based line number of the record in the input.
	Line    int
	columns map[string]int
	values  []string
}

// Get returns the trimmed value of column name, or "" when the column is
// absent or the record is short.
func (r Row) Get(name string) string {
	idx, ok := r.columns[strings.ToLower(name)]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

// has reports whether the header contains column name.
func (r Row) has(name string) bool {
	_, ok := r.columns[strings.ToLower(name)]
	return ok
}

// ProcessFile opens filename and passes it to Process.
func ProcessFile[T any](filename string, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	csvFile, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	return Process(csvFile, parser, opts)
}

// Process reads CSV from r and parses each record into T. Header names are
// matched case-insensitively. Records the csv reader rejects are logged and
// skipped. Parser errors either abort or are skipped per opts.SkipInvalid.
func Process[T any](r io.Reader, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	headerRow := Row{columns: columns}
	for _, name := range opts.Required {
		if !headerRow.has(name) {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var items []T
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Warn("Error reading record", "line", parseErr.Line, "error", err)
				continue
			}
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line, _ := reader.FieldPos(0)

		item, err := parser(Row{Line: line, columns: columns, values: record})
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("invalid record on line %d: %w", line, err)
		}

		items = append(items, item)
	}

	return items, nil
}
