// Package book matches user-supplied book records against external
// bibliographic catalogs and merges verified metadata into them.
package book

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// DraftRecord is the book data supplied by the caller before enrichment.
// Every non-empty value in it is authoritative.
type DraftRecord struct {
	Title       string   `json:"title" yaml:"title" validate:"required,max=500"`
	Author      string   `json:"author" yaml:"author" validate:"required,max=300"`
	ISBN10      string   `json:"isbn10,omitempty" yaml:"isbn10,omitempty" validate:"omitempty,max=20,printascii"`
	ISBN13      string   `json:"isbn13,omitempty" yaml:"isbn13,omitempty" validate:"omitempty,max=20,printascii"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Validate checks the required-field invariant of a draft.
// Whitespace-only titles and authors count as missing.
func (d DraftRecord) Validate() error {
	if err := getValidator().Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is blank", ErrInvalidDraft)
	}
	if strings.TrimSpace(d.Author) == "" {
		return fmt.Errorf("%w: author is blank", ErrInvalidDraft)
	}
	return nil
}

// Identifiers returns the ISBNs carried by the draft in lookup order:
// ISBN-13 first, then ISBN-10. Values are returned as supplied.
func (d DraftRecord) Identifiers() []string {
	var ids []string
	if isbn := strings.TrimSpace(d.ISBN13); isbn != "" {
		ids = append(ids, isbn)
	}
	if isbn := strings.TrimSpace(d.ISBN10); isbn != "" && isbn != strings.TrimSpace(d.ISBN13) {
		ids = append(ids, isbn)
	}
	return ids
}

// ImageLinks holds cover image URLs at the resolutions a catalog exposes.
type ImageLinks struct {
	Thumbnail string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Small     string `json:"small,omitempty" yaml:"small,omitempty"`
	Medium    string `json:"medium,omitempty" yaml:"medium,omitempty"`
	Large     string `json:"large,omitempty" yaml:"large,omitempty"`
}

// Ordered returns the non-blank URLs from the highest resolution to the lowest.
// Duplicate URLs are only returned once.
func (l ImageLinks) Ordered() []string {
	var out []string
	seen := make(map[string]bool, 4)
	for _, u := range []string{l.Large, l.Medium, l.Small, l.Thumbnail} {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Best returns the highest resolution URL available, or "".
func (l ImageLinks) Best() string {
	if ordered := l.Ordered(); len(ordered) > 0 {
		return ordered[0]
	}
	return ""
}

// CandidateRecord is one normalized hit from an external catalog.
type CandidateRecord struct {
	// Source names the adapter that produced the record.
	Source     string `json:"source" yaml:"source"`
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`

	Title         string     `json:"title" yaml:"title"`
	Subtitle      string     `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Authors       []string   `json:"authors,omitempty" yaml:"authors,omitempty"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	Publisher     string     `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedDate string     `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	PageCount     int        `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	Language      string     `json:"language,omitempty" yaml:"language,omitempty"`
	Images        ImageLinks `json:"images,omitempty" yaml:"images,omitempty"`
	Categories    []string   `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Rating is on a 0-5 scale. Nil when the catalog has no rating.
	Rating      *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty" yaml:"review_count,omitempty"`

	ISBN10 string `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	ISBN13 string `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`

	PreviewLink string `json:"preview_link,omitempty" yaml:"preview_link,omitempty"`
	InfoLink    string `json:"info_link,omitempty" yaml:"info_link,omitempty"`
}

// Valid reports whether the record can take part in matching.
// Records without a source tag or title are discarded.
func (c CandidateRecord) Valid() bool {
	return strings.TrimSpace(c.Source) != "" && strings.TrimSpace(c.Title) != ""
}

// MatchResult pairs a candidate with its title score and acceptance verdict.
type MatchResult struct {
	Candidate CandidateRecord `json:"candidate" yaml:"candidate"`
	Score     float64         `json:"score" yaml:"score"`
	Accepted  bool            `json:"accepted" yaml:"accepted"`
}

// Provenance records where enrichment data came from.
type Provenance struct {
	Source     string `json:"source" yaml:"source"`
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// ExternalRating is a catalog's own rating of a book.
type ExternalRating struct {
	Rating      float64 `json:"rating" yaml:"rating"`
	ReviewCount int     `json:"review_count" yaml:"review_count"`
}

// EnrichmentPayload is the subset of an accepted candidate chosen for merging.
// The zero value is the empty payload produced when nothing matched.
type EnrichmentPayload struct {
	Provenance *Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	Subtitle      string          `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Authors       []string        `json:"authors,omitempty" yaml:"authors,omitempty"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Publisher     string          `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedDate string          `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	PageCount     int             `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	Language      string          `json:"language,omitempty" yaml:"language,omitempty"`
	Images        ImageLinks      `json:"images,omitempty" yaml:"images,omitempty"`
	Categories    []string        `json:"categories,omitempty" yaml:"categories,omitempty"`
	Rating        *ExternalRating `json:"rating,omitempty" yaml:"rating,omitempty"`
	ISBN10        string          `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	ISBN13        string          `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`
	PreviewLink   string          `json:"preview_link,omitempty" yaml:"preview_link,omitempty"`
	InfoLink      string          `json:"info_link,omitempty" yaml:"info_link,omitempty"`
}

// IsEmpty reports whether the payload has no provenance, which is the case
// for every unmatched enrichment.
func (p EnrichmentPayload) IsEmpty() bool {
	return p.Provenance == nil
}

// NewPayload selects the mergeable fields of an accepted candidate.
// Values outside their valid range are dropped.
func NewPayload(c CandidateRecord) EnrichmentPayload {
	p := EnrichmentPayload{
		Provenance:    &Provenance{Source: c.Source, ExternalID: c.ExternalID},
		Subtitle:      strings.TrimSpace(c.Subtitle),
		Authors:       nonBlank(c.Authors),
		Description:   strings.TrimSpace(c.Description),
		Publisher:     strings.TrimSpace(c.Publisher),
		PublishedDate: strings.TrimSpace(c.PublishedDate),
		Language:      strings.TrimSpace(c.Language),
		Images:        c.Images,
		Categories:    nonBlank(c.Categories),
		ISBN10:        strings.TrimSpace(c.ISBN10),
		ISBN13:        strings.TrimSpace(c.ISBN13),
		PreviewLink:   strings.TrimSpace(c.PreviewLink),
		InfoLink:      strings.TrimSpace(c.InfoLink),
	}

	if c.PageCount > 0 {
		p.PageCount = c.PageCount
	}

	if c.Rating != nil && *c.Rating >= 0 && *c.Rating <= 5 {
		r := ExternalRating{Rating: *c.Rating}
		if c.ReviewCount != nil && *c.ReviewCount > 0 {
			r.ReviewCount = *c.ReviewCount
		}
		p.Rating = &r
	}

	return p
}

// MergedRecord is a draft with enrichment fields merged in.
type MergedRecord struct {
	Title       string   `json:"title" yaml:"title"`
	Author      string   `json:"author" yaml:"author"`
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Subtitle    string   `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	ISBN10      string   `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	ISBN13      string   `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	Image         string   `json:"image,omitempty" yaml:"image,omitempty"`
	Images        []string `json:"images,omitempty" yaml:"images,omitempty"`
	Publisher     string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	PageCount     int      `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	Language      string   `json:"language,omitempty" yaml:"language,omitempty"`

	// ExternalRatings is keyed by source name.
	ExternalRatings map[string]ExternalRating `json:"external_ratings,omitempty" yaml:"external_ratings,omitempty"`
	Provenance      *Provenance               `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	PreviewLink string `json:"preview_link,omitempty" yaml:"preview_link,omitempty"`
	InfoLink    string `json:"info_link,omitempty" yaml:"info_link,omitempty"`
}

// Enriched reports whether any external data was merged into the record.
func (m MergedRecord) Enriched() bool {
	return m.Provenance != nil
}

func nonBlank(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
