package obsidian

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	"github.com/lepinkainen/bookmeta/internal/fileutil"
)

// managedKeys are the frontmatter keys BookNote writes. Any other key in an
// existing note belongs to the user and survives a rewrite.
var managedKeys = map[string]bool{
	"title": true, "subtitle": true, "author": true, "authors": true,
	"isbn10": true, "isbn13": true, "publisher": true, "published": true,
	"pages": true, "language": true, "cover": true, "source": true,
	"external_id": true, "rating": true, "review_count": true, "tags": true,
}

// Filename returns the markdown file name for a record.
func Filename(m book.MergedRecord) string {
	return fileutil.SanitizeFilename(m.Title) + ".md"
}

// BookNote builds the note for a merged record. coverFile is the local cover
// image name to embed, or "" for none.
func BookNote(m book.MergedRecord, coverFile string) *Note {
	fm := NewFrontmatter()
	fm.Set("title", m.Title)
	fm.Set("author", m.Author)
	fm.SetIf("subtitle", m.Subtitle)
	fm.SetIf("authors", m.Authors)
	fm.SetIf("isbn10", m.ISBN10)
	fm.SetIf("isbn13", m.ISBN13)
	fm.SetIf("publisher", m.Publisher)
	fm.SetIf("published", m.PublishedDate)
	fm.SetIf("pages", m.PageCount)
	fm.SetIf("language", m.Language)

	if coverFile != "" {
		fm.Set("cover", coverFile)
	} else {
		fm.SetIf("cover", m.Image)
	}

	if m.Provenance != nil {
		fm.Set("source", m.Provenance.Source)
		fm.SetIf("external_id", m.Provenance.ExternalID)
	}

	if _, r, ok := firstRating(m); ok {
		fm.Set("rating", r.Rating)
		if r.ReviewCount > 0 {
			fm.Set("review_count", r.ReviewCount)
		}
	}

	fm.Set("tags", bookTags(m).Sorted())

	return &Note{Frontmatter: fm, Body: bookBody(m, coverFile)}
}

// MergeExisting rebuilds note on top of an existing document. User-owned
// frontmatter keys are kept and existing tags are merged with the new ones.
// The body is always replaced.
func MergeExisting(existing []byte, note *Note) (*Note, error) {
	old, err := ParseNote(existing)
	if err != nil {
		return nil, err
	}

	for _, key := range old.Frontmatter.Keys() {
		if managedKeys[key] {
			continue
		}
		val, _ := old.Frontmatter.Get(key)
		note.Frontmatter.Set(key, val)
	}

	note.Frontmatter.Set("tags", MergeTags(
		old.Frontmatter.GetStringArray("tags"),
		note.Frontmatter.GetStringArray("tags"),
	))

	return note, nil
}

func bookTags(m book.MergedRecord) *TagSet {
	tags := NewTagSet()
	tags.Add("book")
	for _, c := range m.Categories {
		tags.AddFormat("genre/%s", c)
	}
	tags.AddIf(m.Language != "", "lang/"+m.Language)
	if m.Provenance != nil {
		tags.AddFormat("source/%s", m.Provenance.Source)
	} else {
		tags.Add("bookmeta/unmatched")
	}
	return tags
}

func bookBody(m book.MergedRecord, coverFile string) string {
	var b strings.Builder

	if coverFile != "" {
		fmt.Fprintf(&b, "![[%s|250]]\n\n", coverFile)
	}

	b.WriteString("## Book Info\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")

	title := m.Title
	if m.Subtitle != "" {
		title = fmt.Sprintf("%s: %s", m.Title, m.Subtitle)
	}
	fmt.Fprintf(&b, "| **Title** | %s |\n", title)

	authors := m.Author
	if len(m.Authors) > 0 {
		authors = strings.Join(m.Authors, ", ")
	}
	fmt.Fprintf(&b, "| **Author** | %s |\n", authors)

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "| **%s** | %s |\n", label, value)
		}
	}
	row("Publisher", m.Publisher)
	row("Published", m.PublishedDate)
	if m.PageCount > 0 {
		row("Pages", fmt.Sprintf("%d", m.PageCount))
	}
	row("ISBN-13", m.ISBN13)
	row("ISBN-10", m.ISBN10)

	if src, r, ok := firstRating(m); ok {
		line := fmt.Sprintf("%.2f/5 (%s)", r.Rating, src)
		if r.ReviewCount > 0 {
			line = fmt.Sprintf("%.2f/5 (%d reviews, %s)", r.Rating, r.ReviewCount, src)
		}
		row("Rating", line)
	}

	if d := strings.TrimSpace(m.Description); d != "" {
		b.WriteString("\n## Description\n\n")
		b.WriteString(d)
		b.WriteString("\n")
	}

	if m.PreviewLink != "" || m.InfoLink != "" {
		b.WriteString("\n## Links\n\n")
		if m.PreviewLink != "" {
			fmt.Fprintf(&b, "- [Preview](%s)\n", m.PreviewLink)
		}
		if m.InfoLink != "" {
			fmt.Fprintf(&b, "- [Catalog page](%s)\n", m.InfoLink)
		}
	}

	return b.String()
}

func firstRating(m book.MergedRecord) (string, book.ExternalRating, bool) {
	if len(m.ExternalRatings) == 0 {
		return "", book.ExternalRating{}, false
	}
	sources := make([]string, 0, len(m.ExternalRatings))
	for src := range m.ExternalRatings {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources[0], m.ExternalRatings[sources[0]], true
}
