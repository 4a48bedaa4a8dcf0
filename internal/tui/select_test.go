package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/enrichment/book"
	errs "github.com/lepinkainen/bookmeta/internal/errors"
)

func sampleResults() []book.MatchResult {
	return []book.MatchResult{
		{
			Candidate: book.CandidateRecord{
				Source:        "googlebooks",
				Title:         "Dune",
				Authors:       []string{"Frank Herbert"},
				Publisher:     "Ace",
				PublishedDate: "1990-09-01",
				PageCount:     535,
				Language:      "en",
				ISBN13:        "9780441172719",
				Description:   "Set on the desert planet Arrakis.",
			},
			Score:    1,
			Accepted: true,
		},
		{
			Candidate: book.CandidateRecord{Source: "openlibrary", Title: "Dune Messiah"},
			Score:     0.63,
		},
	}
}

// withProgram replaces runProgram with one that feeds keys to the model.
func withProgram(t *testing.T, keys ...tea.KeyMsg) {
	t.Helper()
	orig := runProgram
	t.Cleanup(func() { runProgram = orig })

	runProgram = func(m tea.Model) (tea.Model, error) {
		for _, key := range keys {
			var cmd tea.Cmd
			m, cmd = m.Update(key)
			if cmd != nil {
				if _, quit := cmd().(tea.QuitMsg); quit {
					break
				}
			}
		}
		return m, nil
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSelectCandidateEnter(t *testing.T) {
	withProgram(t, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})

	result, err := SelectCandidate("dune", sampleResults())
	require.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	require.NotNil(t, result.Selection)
	assert.Equal(t, "Dune Messiah", result.Selection.Candidate.Title)
}

func TestSelectCandidateSkip(t *testing.T) {
	withProgram(t, runeKey('s'))

	result, err := SelectCandidate("dune", sampleResults())
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
	assert.Nil(t, result.Selection)
}

func TestSelectCandidateStop(t *testing.T) {
	withProgram(t, runeKey('q'))

	result, err := SelectCandidate("dune", sampleResults())
	assert.Equal(t, ActionStopped, result.Action)
	assert.True(t, errs.IsStopProcessingError(err))
}

func TestSelectCandidateEmpty(t *testing.T) {
	orig := runProgram
	t.Cleanup(func() { runProgram = orig })
	runProgram = func(tea.Model) (tea.Model, error) {
		t.Fatal("program should not start")
		return nil, nil
	}

	result, err := SelectCandidate("dune", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
}

func TestSelectCandidateProgramError(t *testing.T) {
	orig := runProgram
	t.Cleanup(func() { runProgram = orig })
	runProgram = func(tea.Model) (tea.Model, error) { return nil, errors.New("no tty") }

	_, err := SelectCandidate("dune", sampleResults())
	assert.EqualError(t, err, "no tty")
}

func TestViewShowsCandidates(t *testing.T) {
	items := make([]candidateItem, 0, 2)
	for _, r := range sampleResults() {
		items = append(items, candidateItem{MatchResult: r})
	}
	view := newModel("dune herbert", items).View()

	assert.Contains(t, view, "Candidates for: dune herbert")
	assert.Contains(t, view, "[GOOGLEBOOKS]")
	assert.Contains(t, view, "Dune by Frank Herbert")
	assert.Contains(t, view, "100% match")
	assert.Contains(t, view, "63% weak match")
}

func TestFormatMetadata(t *testing.T) {
	got := formatMetadata(sampleResults()[0].Candidate, 0)
	assert.Equal(t, "Ace | 1990 | 535p | EN | 9780441172719", got)
	assert.Equal(t, "No metadata available", formatMetadata(book.CandidateRecord{}, 80))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("  a \n b ", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "åäö...", truncate(strings.Repeat("åäö", 4), 6))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 72, clamp(72, 0, 40))
	assert.Equal(t, 50, clamp(72, 50, 40))
	assert.Equal(t, 40, clamp(72, 10, 40))
}
