package obsidian

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	hyphensRe    = regexp.MustCompile(`-+`)
)

// NormalizeTag turns a catalog category into an Obsidian tag.
// Case and "/" hierarchy separators are preserved. "&" becomes "and",
// whitespace becomes "-", and "#" and "," are removed. Returns "" when
// nothing is left.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "#")
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}

	tag = strings.ReplaceAll(tag, "&", "and")
	tag = strings.ReplaceAll(tag, "#", "")
	tag = strings.ReplaceAll(tag, ",", "")
	tag = whitespaceRe.ReplaceAllString(tag, "-")
	tag = hyphensRe.ReplaceAllString(tag, "-")

	return strings.Trim(tag, "-")
}

// TagSet collects normalized, deduplicated tags.
type TagSet struct {
	tags map[string]bool
}

// NewTagSet creates an empty TagSet.
func NewTagSet() *TagSet {
	return &TagSet{tags: make(map[string]bool)}
}

// Add normalizes and adds a tag. Empty results are dropped.
func (ts *TagSet) Add(tag string) {
	if normalized := NormalizeTag(tag); normalized != "" {
		ts.tags[normalized] = true
	}
}

// AddIf adds tag when condition holds.
func (ts *TagSet) AddIf(condition bool, tag string) {
	if condition {
		ts.Add(tag)
	}
}

// AddFormat adds a formatted tag.
func (ts *TagSet) AddFormat(format string, args ...any) {
	ts.Add(fmt.Sprintf(format, args...))
}

// Sorted returns the tags in sorted order.
func (ts *TagSet) Sorted() []string {
	out := make([]string, 0, len(ts.tags))
	for tag := range ts.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MergeTags combines two tag lists into one sorted, normalized, deduplicated list.
func MergeTags(existing, added []string) []string {
	ts := NewTagSet()
	for _, tag := range existing {
		ts.Add(tag)
	}
	for _, tag := range added {
		ts.Add(tag)
	}
	return ts.Sorted()
}
