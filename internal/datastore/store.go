// Package datastore persists merged book records to a local SQLite database
// and to parquet files.
package datastore

import "context"

// Store is a keyed row store. Rows are maps of column name to value.
type Store interface {
	Connect() error

	// CreateTable runs a CREATE TABLE IF NOT EXISTS statement.
	CreateTable(ctx context.Context, schema string) error

	// Upsert writes records in one transaction. A record whose key matches
	// an existing row updates it unless the conflict says to keep the row.
	Upsert(ctx context.Context, table string, conflict Conflict, records []map[string]any) error

	// Count returns the number of rows in table.
	Count(ctx context.Context, table string) (int, error)

	Close() error
}

// Conflict describes how Upsert resolves a record whose key already exists.
type Conflict struct {
	// Key is the unique column records conflict on.
	Key string
	// KeepExisting is an optional SQL condition over the existing row
	// (named by the table) and the incoming one (named excluded). When it
	// holds the existing row is left untouched.
	KeepExisting string
}
