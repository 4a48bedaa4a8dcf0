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
	openLibraryBaseURL = "https://openlibrary.org"
	openLibraryCovers  = "https://covers.openlibrary.org/b/id"
	// Search docs can carry hundreds of subjects.
	openLibraryMaxSubjects = 10
)

// OpenLibrary is the OpenLibrary search and books API adapter.
type OpenLibrary struct {
	baseURL string
	client  *transport
}

// Compile-time check that OpenLibrary implements book.Adapter.
var _ book.Adapter = (*OpenLibrary)(nil)

// NewOpenLibrary creates an OpenLibrary adapter. No API key is needed.
func NewOpenLibrary(opts Options) *OpenLibrary {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = openLibraryBaseURL
	}
	return &OpenLibrary{
		baseURL: baseURL,
		client:  newTransport(config.SourceOpenLibrary, opts),
	}
}

// Name returns the source tag.
func (o *OpenLibrary) Name() string {
	return config.SourceOpenLibrary
}

// Ping tests the connection to OpenLibrary.
func (o *OpenLibrary) Ping(ctx context.Context) error {
	return o.client.ping(ctx, o.baseURL+"/search.json?q=tolkien&limit=1", nil)
}

// SearchByText runs a search.json query.
func (o *OpenLibrary) SearchByText(ctx context.Context, query string, maxResults int) []book.CandidateRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(maxResults))
	searchURL := fmt.Sprintf("%s/search.json?%s", o.baseURL, params.Encode())

	var result openLibrarySearchResponse
	found, err := o.client.getJSON(ctx, "search", searchURL, nil, &result)
	if err != nil || !found {
		return nil
	}

	candidates := make([]book.CandidateRecord, 0, len(result.Docs))
	for _, doc := range result.Docs {
		candidates = append(candidates, doc.candidate())
		if len(candidates) == maxResults {
			break
		}
	}
	return candidates
}

// LookupByIdentifier resolves an ISBN through the books API and fills the
// language from the edition record when that call succeeds.
func (o *OpenLibrary) LookupByIdentifier(ctx context.Context, isbn string) (book.CandidateRecord, bool) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return book.CandidateRecord{}, false
	}

	bibkey := "ISBN:" + isbn
	params := url.Values{}
	params.Set("bibkeys", bibkey)
	params.Set("format", "json")
	params.Set("jscmd", "data")
	lookupURL := fmt.Sprintf("%s/api/books?%s", o.baseURL, params.Encode())

	var result map[string]openLibraryBook
	found, err := o.client.getJSON(ctx, "lookup", lookupURL, nil, &result)
	if err != nil || !found {
		return book.CandidateRecord{}, false
	}

	olBook, ok := result[bibkey]
	if !ok {
		return book.CandidateRecord{}, false
	}
	c := olBook.candidate()

	var edition openLibraryEdition
	editionURL := fmt.Sprintf("%s/isbn/%s.json", o.baseURL, url.PathEscape(isbn))
	if found, err := o.client.getJSON(ctx, "edition", editionURL, nil, &edition); err == nil && found {
		if len(edition.Languages) > 0 {
			c.Language = lastPathSegment(edition.Languages[0].Key)
		}
		if c.PageCount == 0 {
			c.PageCount = edition.NumberOfPages
		}
	}

	return c, true
}

// openLibrarySearchResponse matches the search.json response.
type openLibrarySearchResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	ISBN                []string `json:"isbn"`
	Publisher           []string `json:"publisher"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	Language            []string `json:"language"`
	RatingsAverage      *float64 `json:"ratings_average"`
	RatingsCount        *int     `json:"ratings_count"`
	CoverID             int      `json:"cover_i"`
}

func (doc openLibraryDoc) candidate() book.CandidateRecord {
	c := book.CandidateRecord{
		Source:      config.SourceOpenLibrary,
		ExternalID:  doc.Key,
		Title:       doc.Title,
		Subtitle:    doc.Subtitle,
		Authors:     doc.AuthorName,
		PageCount:   doc.NumberOfPagesMedian,
		Rating:      doc.RatingsAverage,
		ReviewCount: doc.RatingsCount,
		InfoLink:    workLink(doc.Key),
	}

	if doc.FirstPublishYear > 0 {
		c.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
	}
	if len(doc.Publisher) > 0 {
		c.Publisher = doc.Publisher[0]
	}
	if len(doc.Language) > 0 {
		c.Language = doc.Language[0]
	}
	if len(doc.Subject) > 0 {
		c.Categories = doc.Subject[:min(len(doc.Subject), openLibraryMaxSubjects)]
	}
	if doc.CoverID > 0 {
		c.Images = book.ImageLinks{
			Thumbnail: coverURL(doc.CoverID, "S"),
			Medium:    coverURL(doc.CoverID, "M"),
			Large:     coverURL(doc.CoverID, "L"),
		}
	}

	for _, isbn := range doc.ISBN {
		switch len(normalizeISBN(isbn)) {
		case 10:
			if c.ISBN10 == "" {
				c.ISBN10 = isbn
			}
		case 13:
			if c.ISBN13 == "" {
				c.ISBN13 = isbn
			}
		}
	}

	return c
}

// openLibraryBook matches one entry of the api/books jscmd=data response.
type openLibraryBook struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description any    `json:"description"`
	Publishers  []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Identifiers struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
	Subjects      []any  `json:"subjects"`
	NumberOfPages int    `json:"number_of_pages"`
	PublishDate   string `json:"publish_date"`
}

func (b openLibraryBook) candidate() book.CandidateRecord {
	c := book.CandidateRecord{
		Source:        config.SourceOpenLibrary,
		ExternalID:    b.Key,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Description:   extractDescription(b.Description),
		PublishedDate: b.PublishDate,
		PageCount:     b.NumberOfPages,
		Categories:    extractStringSlice(b.Subjects),
		InfoLink:      b.URL,
		Images: book.ImageLinks{
			Thumbnail: b.Cover.Small,
			Medium:    b.Cover.Medium,
			Large:     b.Cover.Large,
		},
	}

	if len(b.Publishers) > 0 {
		c.Publisher = b.Publishers[0].Name
	}
	for _, author := range b.Authors {
		if author.Name != "" {
			c.Authors = append(c.Authors, author.Name)
		}
	}
	if len(b.Identifiers.ISBN10) > 0 {
		c.ISBN10 = b.Identifiers.ISBN10[0]
	}
	if len(b.Identifiers.ISBN13) > 0 {
		c.ISBN13 = b.Identifiers.ISBN13[0]
	}

	return c
}

// openLibraryEdition matches the isbn/{isbn}.json edition response.
type openLibraryEdition struct {
	NumberOfPages int `json:"number_of_pages"`
	Languages     []struct {
		Key string `json:"key"`
	} `json:"languages"`
}

func coverURL(id int, size string) string {
	return fmt.Sprintf("%s/%d-%s.jpg", openLibraryCovers, id, size)
}

func workLink(key string) string {
	if key == "" {
		return ""
	}
	return openLibraryBaseURL + key
}

// extractDescription handles the string and {"value": ...} forms.
func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return val
		}
	}
	return ""
}

// extractStringSlice converts []any of strings or {"name": ...} objects to []string.
func extractStringSlice(items []any) []string {
	if len(items) == 0 {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			result = append(result, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				result = append(result, name)
			}
		}
	}
	return result
}

// lastPathSegment turns "/languages/eng" into "eng".
func lastPathSegment(key string) string {
	key = strings.TrimRight(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// normalizeISBN strips hyphens and spaces from ISBN.
func normalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}
