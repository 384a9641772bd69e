// Package search scans the document collection for case-insensitive
// substring matches.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfsearch/internal/document"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Search returns one result per line containing term, in document, page and
// line order. The term is a literal; a blank term matches nothing.
func Search(docs []document.Document, term string) []document.SearchResult {
	if strings.TrimSpace(term) == "" {
		return nil
	}

	// A Caser is stateful, so each call gets its own.
	lower := cases.Lower(language.Und)
	needle := lower.String(term)

	var results []document.SearchResult
	for _, d := range docs {
		for _, p := range d.Pages {
			for i, line := range p.Lines {
				hay := lower.String(line)
				idx := strings.Index(hay, needle)
				if idx < 0 {
					continue
				}
				results = append(results, document.SearchResult{
					DocumentID:   d.ID,
					DocumentName: d.Name,
					PageNumber:   p.PageNumber,
					LineNumber:   i + 1,
					LineText:     line,
					MatchIndex:   utf8.RuneCountInString(hay[:idx]),
				})
			}
		}
	}
	return results
}
