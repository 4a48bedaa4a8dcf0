package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"
)

// busy_timeout lets concurrent bookmeta runs wait for the write lock
// instead of failing with SQLITE_BUSY.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// SQLiteStore is a Store backed by a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store for dbPath. Nothing is opened until Connect.
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath}
}

// Connect opens the database, creating its directory when needed.
func (s *SQLiteStore) Connect() error {
	if dir := filepath.Dir(s.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+s.dbPath+"?"+sqlitePragmas)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open database %s: %w", s.dbPath, err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) CreateTable(ctx context.Context, schema string) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, table string, conflict Conflict, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	columns := slices.Sorted(maps.Keys(records[0]))
	for i, record := range records[1:] {
		if len(record) != len(columns) {
			return fmt.Errorf("record %d has %d columns, expected %d", i+2, len(record), len(columns))
		}
	}
	if !slices.Contains(columns, conflict.Key) {
		return fmt.Errorf("conflict key %q is not one of the record columns", conflict.Key)
	}

	query := upsertQuery(table, columns, conflict)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	values := make([]any, len(columns))
	for n, record := range records {
		for i, col := range columns {
			v, ok := record[col]
			if !ok {
				return fmt.Errorf("record %d is missing column %q", n+1, col)
			}
			values[i] = v
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to upsert record %d: %w", n+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertQuery builds an INSERT ... ON CONFLICT DO UPDATE statement that
// overwrites every non-key column.
func upsertQuery(table string, columns []string, conflict Conflict) string {
	updates := make([]string, 0, len(columns))
	for _, col := range columns {
		if col != conflict.Key {
			updates = append(updates, col+" = excluded."+col)
		}
	}

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) ",
		table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
		conflict.Key,
	)
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET " + strings.Join(updates, ", "))
	if conflict.KeepExisting != "" {
		b.WriteString(" WHERE NOT (" + conflict.KeepExisting + ")")
	}
	return b.String()
}

func (s *SQLiteStore) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// Close is safe to call on a store that never connected.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
