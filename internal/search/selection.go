package search

import (
	"sort"

	"github.com/dgallion1/pdfsearch/internal/document"
)

// SelectPages groups selected results into the page list of each document.
// Groups follow collection order and pages are unique and ascending. Results
// naming unknown documents or pages outside a document are ignored.
func SelectPages(docs []document.Document, selected []document.SearchResult) []document.PageSelection {
	wanted := make(map[string]map[int]bool)
	for _, r := range selected {
		if wanted[r.DocumentID] == nil {
			wanted[r.DocumentID] = make(map[int]bool)
		}
		wanted[r.DocumentID][r.PageNumber] = true
	}

	var out []document.PageSelection
	for _, d := range docs {
		pages := wanted[d.ID]
		if len(pages) == 0 {
			continue
		}
		sel := document.PageSelection{DocumentID: d.ID, DocumentName: d.Name}
		for p := range pages {
			if p >= 1 && p <= d.TotalPages {
				sel.Pages = append(sel.Pages, p)
			}
		}
		if len(sel.Pages) == 0 {
			continue
		}
		sort.Ints(sel.Pages)
		out = append(out, sel)
	}
	return out
}
