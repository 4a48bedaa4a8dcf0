package book

import "strings"

// Merge combines a draft with an enrichment payload. Values the draft
// supplied always win; the payload only fills fields the draft left empty.
// The draft's author is never replaced: the payload's author list is
// attached separately as Authors.
//
// Merge never fails. Merging the empty payload returns the draft's fields
// unchanged and nothing else.
func Merge(draft DraftRecord, payload EnrichmentPayload) MergedRecord {
	merged := MergedRecord{
		Title:       draft.Title,
		Author:      draft.Author,
		ISBN10:      draft.ISBN10,
		ISBN13:      draft.ISBN13,
		Description: draft.Description,
		Categories:  cloneStrings(draft.Categories),
	}

	if payload.IsEmpty() {
		return merged
	}

	prov := *payload.Provenance
	merged.Provenance = &prov

	if len(payload.Authors) > 0 {
		merged.Authors = cloneStrings(payload.Authors)
	}

	if merged.Description == "" && payload.Description != "" {
		merged.Description = payload.Description
	}

	if len(merged.Categories) == 0 && len(payload.Categories) > 0 {
		merged.Categories = mergeStringSlices(nil, payload.Categories)
	}

	if isBlank(merged.ISBN10) && payload.ISBN10 != "" {
		merged.ISBN10 = payload.ISBN10
	}
	if isBlank(merged.ISBN13) && payload.ISBN13 != "" {
		merged.ISBN13 = payload.ISBN13
	}

	if images := payload.Images.Ordered(); len(images) > 0 {
		merged.Image = images[0]
		merged.Images = images
	}

	merged.Subtitle = payload.Subtitle
	merged.Publisher = payload.Publisher
	merged.PublishedDate = payload.PublishedDate
	merged.PageCount = payload.PageCount
	merged.Language = payload.Language
	merged.PreviewLink = payload.PreviewLink
	merged.InfoLink = payload.InfoLink

	if payload.Rating != nil && prov.Source != "" {
		merged.ExternalRatings = map[string]ExternalRating{prov.Source: *payload.Rating}
	}

	return merged
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

// mergeStringSlices merges two string slices, removing duplicates.
func mergeStringSlices(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	return result
}
