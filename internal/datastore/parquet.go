package datastore

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// WriteParquet writes entries as BookRow rows to w.
func WriteParquet(w io.Writer, entries []Entry, now time.Time) error {
	rows := make([]BookRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, NewBookRow(e, now))
	}

	writer := parquet.NewGenericWriter[BookRow](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// ReadParquet loads every BookRow from a parquet file.
func ReadParquet(path string) ([]BookRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[BookRow](pf)
	defer func() { _ = reader.Close() }()

	var out []BookRow
	batch := make([]BookRow, 64)
	for {
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading parquet rows: %w", err)
		}
	}

	return out, nil
}
