package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

// BooksTable is the table merged records are written to.
const BooksTable = "books"

// BooksSchema creates the books table.
const BooksSchema = `CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	authors TEXT,
	subtitle TEXT,
	isbn10 TEXT,
	isbn13 TEXT,
	description TEXT,
	categories TEXT,
	image TEXT,
	images TEXT,
	publisher TEXT,
	published_date TEXT,
	page_count INTEGER,
	language TEXT,
	rating REAL,
	review_count INTEGER,
	rating_source TEXT,
	source TEXT,
	external_id TEXT,
	preview_link TEXT,
	info_link TEXT,
	enriched_at TEXT
)`

// bookNamespace scopes the deterministic row ids.
var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/lepinkainen/bookmeta/books"))

// BookRow is the flat form of a merged record shared by the SQLite table and
// the parquet export.
type BookRow struct {
	ID            string   `parquet:"id"`
	Title         string   `parquet:"title"`
	Author        string   `parquet:"author"`
	Authors       []string `parquet:"authors,list"`
	Subtitle      string   `parquet:"subtitle"`
	ISBN10        string   `parquet:"isbn10"`
	ISBN13        string   `parquet:"isbn13"`
	Description   string   `parquet:"description"`
	Categories    []string `parquet:"categories,list"`
	Image         string   `parquet:"image"`
	Images        []string `parquet:"images,list"`
	Publisher     string   `parquet:"publisher"`
	PublishedDate string   `parquet:"published_date"`
	PageCount     int64    `parquet:"page_count"`
	Language      string   `parquet:"language"`
	Rating        float64  `parquet:"rating"`
	ReviewCount   int64    `parquet:"review_count"`
	RatingSource  string   `parquet:"rating_source"`
	Source        string   `parquet:"source"`
	ExternalID    string   `parquet:"external_id"`
	PreviewLink   string   `parquet:"preview_link"`
	InfoLink      string   `parquet:"info_link"`
	EnrichedAt    string   `parquet:"enriched_at"`
}

// Entry pairs a merged record with the draft it was enriched from.
type Entry struct {
	Draft  book.DraftRecord
	Record book.MergedRecord
}

// BookID derives a stable id from the draft so that re-running enrichment
// replaces the earlier row whatever the catalogs answered. ISBN-13 is
// preferred, then ISBN-10, then the lowercased title and author.
func BookID(d book.DraftRecord) string {
	key := strings.TrimSpace(d.ISBN13)
	if key == "" {
		key = strings.TrimSpace(d.ISBN10)
	}
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(d.Title) + "|" + strings.TrimSpace(d.Author))
	}
	return uuid.NewSHA1(bookNamespace, []byte(key)).String()
}

// NewBookRow flattens an entry. Only records with provenance get an
// enriched_at timestamp.
func NewBookRow(e Entry, now time.Time) BookRow {
	m := e.Record
	row := BookRow{
		ID:            BookID(e.Draft),
		Title:         m.Title,
		Author:        m.Author,
		Authors:       m.Authors,
		Subtitle:      m.Subtitle,
		ISBN10:        m.ISBN10,
		ISBN13:        m.ISBN13,
		Description:   m.Description,
		Categories:    m.Categories,
		Image:         m.Image,
		Images:        m.Images,
		Publisher:     m.Publisher,
		PublishedDate: m.PublishedDate,
		PageCount:     int64(m.PageCount),
		Language:      m.Language,
		PreviewLink:   m.PreviewLink,
		InfoLink:      m.InfoLink,
	}

	if m.Provenance != nil {
		row.Source = m.Provenance.Source
		row.ExternalID = m.Provenance.ExternalID
		row.EnrichedAt = now.UTC().Format(time.RFC3339)
	}

	// A merged record carries at most one rating, but pick deterministically.
	sources := make([]string, 0, len(m.ExternalRatings))
	for src := range m.ExternalRatings {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	if len(sources) > 0 {
		r := m.ExternalRatings[sources[0]]
		row.RatingSource = sources[0]
		row.Rating = r.Rating
		row.ReviewCount = int64(r.ReviewCount)
	}

	return row
}

// Map converts the row into column values for the SQLite table.
// List fields are stored as JSON arrays.
func (r BookRow) Map() (map[string]any, error) {
	authors, err := jsonList(r.Authors)
	if err != nil {
		return nil, fmt.Errorf("encoding authors: %w", err)
	}
	categories, err := jsonList(r.Categories)
	if err != nil {
		return nil, fmt.Errorf("encoding categories: %w", err)
	}
	images, err := jsonList(r.Images)
	if err != nil {
		return nil, fmt.Errorf("encoding images: %w", err)
	}

	return map[string]any{
		"id":             r.ID,
		"title":          r.Title,
		"author":         r.Author,
		"authors":        authors,
		"subtitle":       nullable(r.Subtitle),
		"isbn10":         nullable(r.ISBN10),
		"isbn13":         nullable(r.ISBN13),
		"description":    nullable(r.Description),
		"categories":     categories,
		"image":          nullable(r.Image),
		"images":         images,
		"publisher":      nullable(r.Publisher),
		"published_date": nullable(r.PublishedDate),
		"page_count":     nullableInt(r.PageCount),
		"language":       nullable(r.Language),
		"rating":         nullableRating(r),
		"review_count":   nullableInt(r.ReviewCount),
		"rating_source":  nullable(r.RatingSource),
		"source":         nullable(r.Source),
		"external_id":    nullable(r.ExternalID),
		"preview_link":   nullable(r.PreviewLink),
		"info_link":      nullable(r.InfoLink),
		"enriched_at":    nullable(r.EnrichedAt),
	}, nil
}

// keepEnriched stops an unmatched record from overwriting a row that an
// earlier run enriched, e.g. while a catalog is down.
var keepEnriched = Conflict{
	Key:          "id",
	KeepExisting: BooksTable + ".source IS NOT NULL AND excluded.source IS NULL",
}

// SaveBooks writes entries to the books table, creating it if needed.
func SaveBooks(ctx context.Context, store Store, entries []Entry, now time.Time) error {
	if err := store.CreateTable(ctx, BooksSchema); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		row, err := NewBookRow(e, now).Map()
		if err != nil {
			return fmt.Errorf("mapping %q: %w", e.Record.Title, err)
		}
		rows = append(rows, row)
	}

	return store.Upsert(ctx, BooksTable, keepEnriched, rows)
}

func jsonList(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableRating(r BookRow) any {
	if r.RatingSource == "" {
		return nil
	}
	return r.Rating
}
