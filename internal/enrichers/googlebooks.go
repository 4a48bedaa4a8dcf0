package enrichers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
)

const (
	googleBooksBaseURL = "https://www.googleapis.com/books/v1"
	// Google Books rejects maxResults above 40.
	googleBooksMaxResults = 40
	googleBooksLanguage   = "en"
)

// GoogleBooks is the Google Books volumes API adapter.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	client  *transport
}

// Compile-time check that GoogleBooks implements book.Adapter.
var _ book.Adapter = (*GoogleBooks)(nil)

// NewGoogleBooks creates a Google Books adapter. The API key is optional.
func NewGoogleBooks(opts Options) *GoogleBooks {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = googleBooksBaseURL
	}
	return &GoogleBooks{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client:  newTransport(config.SourceGoogleBooks, opts),
	}
}

// Name returns the source tag.
func (g *GoogleBooks) Name() string {
	return config.SourceGoogleBooks
}

// Ping tests the connection with a lookup of a well-known ISBN.
func (g *GoogleBooks) Ping(ctx context.Context) error {
	return g.client.ping(ctx, g.volumesURL("isbn:0140447938", 1), nil)
}

// SearchByText runs a free-text volumes query.
func (g *GoogleBooks) SearchByText(ctx context.Context, query string, maxResults int) []book.CandidateRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	switch {
	case maxResults <= 0:
		maxResults = defaultMaxResults
	case maxResults > googleBooksMaxResults:
		maxResults = googleBooksMaxResults
	}

	var result googleBooksResponse
	found, err := g.client.getJSON(ctx, "search", g.volumesURL(query, maxResults), nil, &result)
	if err != nil || !found {
		return nil
	}

	candidates := make([]book.CandidateRecord, 0, len(result.Items))
	for _, item := range result.Items {
		candidates = append(candidates, item.candidate())
	}
	return candidates
}

// LookupByIdentifier queries volumes with the isbn: operator and returns the first item.
func (g *GoogleBooks) LookupByIdentifier(ctx context.Context, isbn string) (book.CandidateRecord, bool) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return book.CandidateRecord{}, false
	}

	var result googleBooksResponse
	found, err := g.client.getJSON(ctx, "lookup", g.volumesURL("isbn:"+isbn, 1), nil, &result)
	if err != nil || !found || len(result.Items) == 0 {
		return book.CandidateRecord{}, false
	}
	return result.Items[0].candidate(), true
}

func (g *GoogleBooks) volumesURL(q string, maxResults int) string {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	return fmt.Sprintf("%s/volumes?%s", g.baseURL, params.Encode())
}

// googleBooksResponse matches the Google Books volumes list response.
type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		Language            string   `json:"language"`
		AverageRating       *float64 `json:"averageRating"`
		RatingsCount        *int     `json:"ratingsCount"`
		PreviewLink         string   `json:"previewLink"`
		InfoLink            string   `json:"infoLink"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			SmallThumbnail string `json:"smallThumbnail"`
			Thumbnail      string `json:"thumbnail"`
			Small          string `json:"small"`
			Medium         string `json:"medium"`
			Large          string `json:"large"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

func (item googleBooksItem) candidate() book.CandidateRecord {
	vol := item.VolumeInfo

	c := book.CandidateRecord{
		Source:        config.SourceGoogleBooks,
		ExternalID:    item.ID,
		Title:         vol.Title,
		Subtitle:      vol.Subtitle,
		Authors:       vol.Authors,
		Description:   vol.Description,
		Publisher:     vol.Publisher,
		PublishedDate: vol.PublishedDate,
		PageCount:     vol.PageCount,
		Language:      vol.Language,
		Categories:    vol.Categories,
		Rating:        vol.AverageRating,
		ReviewCount:   vol.RatingsCount,
		PreviewLink:   vol.PreviewLink,
		InfoLink:      vol.InfoLink,
		Images: book.ImageLinks{
			Thumbnail: vol.ImageLinks.Thumbnail,
			Small:     vol.ImageLinks.Small,
			Medium:    vol.ImageLinks.Medium,
			Large:     vol.ImageLinks.Large,
		},
	}

	if c.Images.Thumbnail == "" {
		c.Images.Thumbnail = vol.ImageLinks.SmallThumbnail
	}
	if c.Language == "" {
		c.Language = googleBooksLanguage
	}

	for _, id := range vol.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			if c.ISBN10 == "" {
				c.ISBN10 = id.Identifier
			}
		case "ISBN_13":
			if c.ISBN13 == "" {
				c.ISBN13 = id.Identifier
			}
		}
	}

	return c
}
