package enrichers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	errs "github.com/lepinkainen/bookmeta/internal/errors"
)

const (
	isbndbBaseURL = "https://api2.isbndb.com"
	// Upper bound for pageSize.
	isbndbMaxResults = 100
)

// ISBNdb is the ISBNdb v2 API adapter. It needs an API key; without one
// every call is a miss and no request is sent.
type ISBNdb struct {
	baseURL string
	apiKey  string
	client  *transport
}

// Compile-time check that ISBNdb implements book.Adapter.
var _ book.Adapter = (*ISBNdb)(nil)

// NewISBNdb creates an ISBNdb adapter.
func NewISBNdb(opts Options) *ISBNdb {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = isbndbBaseURL
	}
	return &ISBNdb{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client:  newTransport(config.SourceISBNdb, opts),
	}
}

// Name returns the source tag.
func (i *ISBNdb) Name() string {
	return config.SourceISBNdb
}

// Ping tests the API key against a well-known ISBN.
func (i *ISBNdb) Ping(ctx context.Context) error {
	if i.apiKey == "" {
		return fmt.Errorf("ISBNdb API key not configured")
	}
	err := i.client.ping(ctx, i.baseURL+"/book/9780140447934", i.header(), http.StatusNotFound)
	var srcErr *errs.SourceError
	if errors.As(err, &srcErr) && srcErr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("ISBNdb API key invalid: %w", err)
	}
	return err
}

// SearchByText runs a books query.
func (i *ISBNdb) SearchByText(ctx context.Context, query string, maxResults int) []book.CandidateRecord {
	query = strings.TrimSpace(query)
	if query == "" || i.apiKey == "" {
		return nil
	}
	switch {
	case maxResults <= 0:
		maxResults = defaultMaxResults
	case maxResults > isbndbMaxResults:
		maxResults = isbndbMaxResults
	}

	params := url.Values{}
	params.Set("page", "1")
	params.Set("pageSize", strconv.Itoa(maxResults))
	searchURL := fmt.Sprintf("%s/books/%s?%s", i.baseURL, url.PathEscape(query), params.Encode())

	var result isbndbSearchResponse
	found, err := i.client.getJSON(ctx, "search", searchURL, i.header(), &result)
	if err != nil || !found {
		return nil
	}

	candidates := make([]book.CandidateRecord, 0, len(result.Books))
	for _, b := range result.Books {
		candidates = append(candidates, b.candidate())
		if len(candidates) == maxResults {
			break
		}
	}
	return candidates
}

// LookupByIdentifier fetches a single book. A 404 or an empty book is a miss.
func (i *ISBNdb) LookupByIdentifier(ctx context.Context, isbn string) (book.CandidateRecord, bool) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" || i.apiKey == "" {
		return book.CandidateRecord{}, false
	}

	var result isbndbBookResponse
	lookupURL := fmt.Sprintf("%s/book/%s", i.baseURL, url.PathEscape(isbn))
	found, err := i.client.getJSON(ctx, "lookup", lookupURL, i.header(), &result)
	if err != nil || !found {
		return book.CandidateRecord{}, false
	}

	b := result.Book
	if b.Title == "" && b.ISBN == "" && b.ISBN13 == "" {
		return book.CandidateRecord{}, false
	}
	return b.candidate(), true
}

func (i *ISBNdb) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", i.apiKey)
	return h
}

// isbndbBookResponse matches the /book/{isbn} response.
type isbndbBookResponse struct {
	Book isbndbBook `json:"book"`
}

// isbndbSearchResponse matches the /books/{query} response.
type isbndbSearchResponse struct {
	Total int          `json:"total"`
	Books []isbndbBook `json:"books"`
}

type isbndbBook struct {
	Title         string   `json:"title"`
	TitleLong     string   `json:"title_long"`
	ISBN          string   `json:"isbn"`
	ISBN10        string   `json:"isbn10"`
	ISBN13        string   `json:"isbn13"`
	Publisher     string   `json:"publisher"`
	Language      string   `json:"language"`
	DatePublished string   `json:"date_published"`
	Pages         int      `json:"pages"`
	Overview      string   `json:"overview"`
	Synopsis      string   `json:"synopsis"`
	Image         string   `json:"image"`
	ImageOriginal string   `json:"image_original"`
	Authors       []string `json:"authors"`
	Subjects      []string `json:"subjects"`
}

func (b isbndbBook) candidate() book.CandidateRecord {
	c := book.CandidateRecord{
		Source:        config.SourceISBNdb,
		ExternalID:    b.ISBN13,
		Title:         b.Title,
		Authors:       b.Authors,
		Publisher:     b.Publisher,
		PublishedDate: b.DatePublished,
		PageCount:     b.Pages,
		Language:      b.Language,
		ISBN10:        b.ISBN10,
		ISBN13:        b.ISBN13,
		Images: book.ImageLinks{
			Medium: b.Image,
			Large:  b.ImageOriginal,
		},
	}

	if c.ExternalID == "" {
		c.ExternalID = b.ISBN
	}
	if c.ISBN10 == "" && len(normalizeISBN(b.ISBN)) == 10 {
		c.ISBN10 = b.ISBN
	}

	c.Description = b.Synopsis
	if c.Description == "" {
		c.Description = b.Overview
	}

	for _, s := range b.Subjects {
		// Filter out generic "Subjects" entry
		if s != "" && s != "Subjects" {
			c.Categories = append(c.Categories, s)
		}
	}

	return c
}
