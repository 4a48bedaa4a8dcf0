package obsidian

import (
	"reflect"
	"testing"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fiction", "Fiction"},
		{"#Fiction", "Fiction"},
		{"  Science Fiction  ", "Science-Fiction"},
		{"Juvenile Fiction / Fantasy & Magic", "Juvenile-Fiction-/-Fantasy-and-Magic"},
		{"Fiction, Classics", "Fiction-Classics"},
		{"genre/Science fiction", "genre/Science-fiction"},
		{"--a---b--", "a-b"},
		{"   ", ""},
		{"#", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeTag(tt.input); got != tt.want {
				t.Errorf("NormalizeTag(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTagSet(t *testing.T) {
	ts := NewTagSet()
	ts.Add("book")
	ts.Add("#book")
	ts.Add("")
	ts.AddIf(false, "skipped")
	ts.AddIf(true, "lang/en")
	ts.AddFormat("genre/%s", "Science Fiction")

	want := []string{"book", "genre/Science-Fiction", "lang/en"}
	if got := ts.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"to-read", "book"}, []string{"book", "genre/Fiction", " "})
	want := []string{"book", "genre/Fiction", "to-read"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeTags() = %v, want %v", got, want)
	}

	if got := MergeTags(nil, nil); len(got) != 0 {
		t.Errorf("MergeTags(nil, nil) = %v, want empty", got)
	}
}

func TestStringsFromAny(t *testing.T) {
	if got := stringsFromAny([]any{"a", 1, "", "b"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("stringsFromAny([]any) = %v", got)
	}
	if got := stringsFromAny([]string{"a", ""}); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("stringsFromAny([]string) = %v", got)
	}
	if got := stringsFromAny("a"); len(got) != 0 {
		t.Errorf("stringsFromAny(string) = %v", got)
	}
}
