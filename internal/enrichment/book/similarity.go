package book

import "strings"

// Similarity returns a case-insensitive score in [0, 1] for two strings,
// computed as (maxLen - levenshtein(a, b)) / maxLen over runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}

	return float64(maxLen-editDistance(ra, rb)) / float64(maxLen)
}

// editDistance is the Levenshtein distance using two rolling rows.
func editDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j-1]+cost, // substitute
				prev[j]+1,      // delete
				curr[j-1]+1,    // insert
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
