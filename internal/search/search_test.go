package search

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/pdfsearch/internal/document"
)

func TestSearch_SingleMatch(t *testing.T) {
	docs := []document.Document{{
		ID:         "d1",
		Name:       "cats.pdf",
		TotalPages: 1,
		Pages:      []document.PageContent{{PageNumber: 1, Lines: []string{"The cat sat"}}},
	}}

	results := Search(docs, "cat")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	want := document.SearchResult{
		DocumentID:   "d1",
		DocumentName: "cats.pdf",
		PageNumber:   1,
		LineNumber:   1,
		LineText:     "The cat sat",
		MatchIndex:   4,
	}
	if results[0] != want {
		t.Errorf("expected %+v, got %+v", want, results[0])
	}
}

func TestSearch_EmptyTerm(t *testing.T) {
	docs := []document.Document{{
		ID:    "d1",
		Pages: []document.PageContent{{PageNumber: 1, Lines: []string{"anything", "   "}}},
	}}
	for _, term := range []string{"", "   ", "\t\n"} {
		if got := Search(docs, term); len(got) != 0 {
			t.Errorf("Search(%q): expected no results, got %d", term, len(got))
		}
	}
}

func TestSearch_CaseInsensitiveKeepsOriginalLine(t *testing.T) {
	docs := []document.Document{{
		ID:    "d1",
		Pages: []document.PageContent{{PageNumber: 1, Lines: []string{"INVOICE Total Due"}}},
	}}
	results := Search(docs, "total due")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].LineText != "INVOICE Total Due" {
		t.Errorf("expected original line text, got %q", results[0].LineText)
	}
	if results[0].MatchIndex != 8 {
		t.Errorf("expected match index 8, got %d", results[0].MatchIndex)
	}
}

func TestSearch_OneResultPerLine(t *testing.T) {
	docs := []document.Document{{
		ID:    "d1",
		Pages: []document.PageContent{{PageNumber: 1, Lines: []string{"no no no", "yes"}}},
	}}
	results := Search(docs, "no")
	if len(results) != 1 {
		t.Fatalf("expected 1 result for repeated term on one line, got %d", len(results))
	}
	if results[0].MatchIndex != 0 {
		t.Errorf("expected first occurrence at 0, got %d", results[0].MatchIndex)
	}
}

func TestSearch_OrderAcrossDocumentsPagesLines(t *testing.T) {
	docs := []document.Document{
		{ID: "d1", Pages: []document.PageContent{
			{PageNumber: 1, Lines: []string{"alpha", "beta alpha"}},
			{PageNumber: 2, Lines: []string{"gamma", "ALPHA"}},
		}},
		{ID: "d2", Pages: []document.PageContent{
			{PageNumber: 1, Lines: []string{"delta alpha"}},
		}},
	}

	results := Search(docs, "alpha")
	var got []string
	for _, r := range results {
		got = append(got, fmt.Sprintf("%s:%d:%d", r.DocumentID, r.PageNumber, r.LineNumber))
	}
	want := "d1:1:1 d1:1:2 d1:2:2 d2:1:1"
	if strings.Join(got, " ") != want {
		t.Errorf("expected %q, got %q", want, strings.Join(got, " "))
	}

	for _, r := range results {
		lowered := strings.ToLower(r.LineText)
		if !strings.HasPrefix(lowered[r.MatchIndex:], "alpha") {
			t.Errorf("match index %d does not point at term in %q", r.MatchIndex, r.LineText)
		}
	}
}

func TestSearch_RegexMetacharactersAreLiteral(t *testing.T) {
	docs := []document.Document{{
		ID:    "d1",
		Pages: []document.PageContent{{PageNumber: 1, Lines: []string{"cost (USD) = $5.00", "cost USD 5x00"}}},
	}}
	results := Search(docs, "(usd) = $5.")
	if len(results) != 1 || results[0].LineNumber != 1 {
		t.Fatalf("expected literal match on line 1 only, got %+v", results)
	}
}

func TestSearch_MatchIndexCountsCharacters(t *testing.T) {
	docs := []document.Document{{
		ID:    "d1",
		Pages: []document.PageContent{{PageNumber: 1, Lines: []string{"Café Müller"}}},
	}}
	results := Search(docs, "müller")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].MatchIndex != 5 {
		t.Errorf("expected character offset 5, got %d", results[0].MatchIndex)
	}
}
