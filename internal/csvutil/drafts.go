package csvutil

import (
	"io"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

// Draft CSV columns. categories holds a ";" separated list.
const (
	ColumnTitle       = "title"
	ColumnAuthor      = "author"
	ColumnISBN10      = "isbn10"
	ColumnISBN13      = "isbn13"
	ColumnDescription = "description"
	ColumnCategories  = "categories"
)

// ParseDraft builds a validated DraftRecord from a row.
func ParseDraft(row Row) (book.DraftRecord, error) {
	d := book.DraftRecord{
		Title:       row.Get(ColumnTitle),
		Author:      row.Get(ColumnAuthor),
		ISBN10:      row.Get(ColumnISBN10),
		ISBN13:      row.Get(ColumnISBN13),
		Description: row.Get(ColumnDescription),
		Categories:  splitList(row.Get(ColumnCategories)),
	}
	if err := d.Validate(); err != nil {
		return book.DraftRecord{}, err
	}
	return d, nil
}

// ReadDrafts reads draft records from CSV. Invalid rows are logged and skipped.
func ReadDrafts(r io.Reader) ([]book.DraftRecord, error) {
	return Process(r, ParseDraft, ProcessorOptions{
		Required:    []string{ColumnTitle, ColumnAuthor},
		SkipInvalid: true,
	})
}

// ReadDraftsFile reads draft records from a CSV file.
func ReadDraftsFile(filename string) ([]book.DraftRecord, error) {
	return ProcessFile(filename, ParseDraft, ProcessorOptions{
		Required:    []string{ColumnTitle, ColumnAuthor},
		SkipInvalid: true,
	})
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
