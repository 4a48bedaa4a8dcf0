package datastore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

const testSchema = `CREATE TABLE IF NOT EXISTS test_table (
	id INTEGER PRIMARY KEY,
	name TEXT,
	value INTEGER
)`

var byID = Conflict{Key: "id"}

func connectTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err := store.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.CreateTable(context.Background(), testSchema); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return store
}

func TestSQLiteStore_UpsertReplacesByKey(t *testing.T) {
	ctx := context.Background()
	store := connectTestStore(t)

	records := []map[string]any{
		{"id": 1, "name": "foo", "value": 42},
		{"id": 2, "name": "bar", "value": 99},
	}
	if err := store.Upsert(ctx, "test_table", byID, records); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := store.Upsert(ctx, "test_table", byID, []map[string]any{{"id": 1, "name": "baz", "value": 7}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	count, err := store.Count(ctx, "test_table")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	var name string
	var value int
	if err := store.db.QueryRow("SELECT name, value FROM test_table WHERE id = 1").Scan(&name, &value); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if name != "baz" || value != 7 {
		t.Errorf("row 1 = (%q, %d), want (baz, 7)", name, value)
	}
}

func TestSQLiteStore_UpsertEmpty(t *testing.T) {
	store := connectTestStore(t)

	if err := store.Upsert(context.Background(), "missing_table", byID, nil); err != nil {
		t.Errorf("empty upsert should be a no-op, got %v", err)
	}
}

func TestSQLiteStore_UpsertMismatchedColumns(t *testing.T) {
	ctx := context.Background()
	store := connectTestStore(t)

	err := store.Upsert(ctx, "test_table", byID, []map[string]any{
		{"id": 1, "name": "foo", "value": 1},
		{"id": 2, "name": "bar", "other": 2},
	})
	if err == nil || !strings.Contains(err.Error(), `missing column "value"`) {
		t.Fatalf("expected missing column error, got %v", err)
	}

	count, err := store.Count(ctx, "test_table")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("failed upsert should roll back, found %d rows", count)
	}
}

func TestSQLiteStore_UpsertCancelled(t *testing.T) {
	store := connectTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upsert(ctx, "test_table", byID, []map[string]any{{"id": 1, "name": "foo", "value": 1}}); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestSQLiteStore_UpsertKeepExisting(t *testing.T) {
	ctx := context.Background()
	store := connectTestStore(t)
	keepNamed := Conflict{Key: "id", KeepExisting: "test_table.name IS NOT NULL AND excluded.name IS NULL"}

	if err := store.Upsert(ctx, "test_table", keepNamed, []map[string]any{{"id": 1, "name": "foo", "value": 1}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := store.Upsert(ctx, "test_table", keepNamed, []map[string]any{{"id": 1, "name": nil, "value": 2}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	var name string
	var value int
	if err := store.db.QueryRow("SELECT name, value FROM test_table WHERE id = 1").Scan(&name, &value); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if name != "foo" || value != 1 {
		t.Errorf("row 1 = (%q, %d), want the original (foo, 1)", name, value)
	}

	if err := store.Upsert(ctx, "test_table", keepNamed, []map[string]any{{"id": 1, "name": "bar", "value": 3}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := store.db.QueryRow("SELECT name, value FROM test_table WHERE id = 1").Scan(&name, &value); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if name != "bar" || value != 3 {
		t.Errorf("row 1 = (%q, %d), want (bar, 3)", name, value)
	}
}

func TestSQLiteStore_UpsertUnknownKey(t *testing.T) {
	store := connectTestStore(t)

	err := store.Upsert(context.Background(), "test_table", Conflict{Key: "uuid"}, []map[string]any{{"id": 1, "name": "foo", "value": 1}})
	if err == nil || !strings.Contains(err.Error(), `conflict key "uuid"`) {
		t.Fatalf("expected conflict key error, got %v", err)
	}
}

func TestUpsertQuery(t *testing.T) {
	got := upsertQuery("books", []string{"id", "source", "title"}, Conflict{Key: "id", KeepExisting: "books.source IS NOT NULL"})
	want := "INSERT INTO books (id, source, title) VALUES (?, ?, ?) ON CONFLICT(id) " +
		"DO UPDATE SET source = excluded.source, title = excluded.title WHERE NOT (books.source IS NOT NULL)"
	if got != want {
		t.Errorf("upsertQuery() =\n%s\nwant\n%s", got, want)
	}

	if got := upsertQuery("t", []string{"id"}, Conflict{Key: "id"}); !strings.HasSuffix(got, "ON CONFLICT(id) DO NOTHING") {
		t.Errorf("key-only upsert = %s", got)
	}
}

func TestSQLiteStore_CloseWithoutConnect(t *testing.T) {
	if err := NewSQLiteStore("unused.db").Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
