package book

import "strings"

const (
	// TitleThreshold is the title score a candidate must exceed.
	TitleThreshold = 0.7
	// AuthorThreshold is the score at least one candidate author must exceed.
	AuthorThreshold = 0.7
)

// subtitleSeparators mark where a catalog title turns into a subtitle.
var subtitleSeparators = []string{":", " - ", " (", ";"}

// Evaluate scores a candidate against a target title and author.
//
// The title score is the best similarity between the full or main title of
// the target and the full or main title of the candidate, where the main
// title has any subtitle cut off. The
// author check passes when the candidate lists no authors or any listed
// author scores above AuthorThreshold.
func Evaluate(targetTitle, targetAuthor string, candidate CandidateRecord) MatchResult {
	if strings.TrimSpace(candidate.Title) == "" {
		return MatchResult{Candidate: candidate}
	}

	score := titleScore(targetTitle, candidate.Title)

	return MatchResult{
		Candidate: candidate,
		Score:     score,
		Accepted:  score > TitleThreshold && authorAccepted(targetAuthor, candidate.Authors),
	}
}

func titleScore(target, title string) float64 {
	targets := titleForms(target)
	titles := titleForms(title)

	var best float64
	for _, t := range targets {
		for _, c := range titles {
			best = max(best, Similarity(t, c))
		}
	}
	return best
}

// titleForms returns the trimmed title and, when it has a subtitle, its main
// title.
func titleForms(title string) []string {
	forms := []string{strings.TrimSpace(title)}
	if main := mainTitle(title); main != "" {
		forms = append(forms, main)
	}
	return forms
}

func authorAccepted(target string, authors []string) bool {
	if len(authors) == 0 {
		return true
	}
	target = strings.TrimSpace(target)
	for _, author := range authors {
		if Similarity(target, strings.TrimSpace(author)) > AuthorThreshold {
			return true
		}
	}
	return false
}

// mainTitle returns the part of title before the first subtitle separator,
// or "" when title has no subtitle.
func mainTitle(title string) string {
	cut := -1
	for _, sep := range subtitleSeparators {
		if idx := strings.Index(title, sep); idx > 0 && (cut == -1 || idx < cut) {
			cut = idx
		}
	}
	if cut == -1 {
		return ""
	}
	return strings.TrimSpace(title[:cut])
}
