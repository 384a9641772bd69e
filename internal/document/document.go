// Package document defines the page, line and search types shared by the
// parser, the recognition fallback, the pipeline and the HTTP API.
package document

import (
	"context"
	"errors"
	"os"
)

// DefaultFragmentHeight is used when a provider cannot report glyph height.
const DefaultFragmentHeight = 12.0

// ErrUnreadable reports a file that cannot be parsed as a PDF.
var ErrUnreadable = errors.New("unreadable pdf")

// TextFragment is one positioned run of glyphs on a page.
type TextFragment struct {
	Text   string  // Rendered text of the run
	X      float64 // Horizontal origin
	Y      float64 // Baseline, PDF space (larger is higher on the page)
	Height float64 // Approximate glyph height
}

// PageContent is the extracted text of one page. It is not modified after creation.
type PageContent struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Lines      []string `json:"lines"`
	OCR        bool     `json:"ocr"` // Lines came from recognition rather than the text layer
}

// Document is one uploaded file and its per-page line index.
type Document struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	TotalPages int           `json:"total_pages"`
	Pages      []PageContent `json:"pages"`
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(n int) (PageContent, bool) {
	if n < 1 || n > len(d.Pages) {
		return PageContent{}, false
	}
	return d.Pages[n-1], true
}

// SearchResult is one matching line.
type SearchResult struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	LineNumber   int    `json:"line_number"` // 1-based within the page's Lines
	LineText     string `json:"line_text"`
	MatchIndex   int    `json:"match_index"` // Character offset of the first match in the lower-cased line
}

// PageSelection lists the pages chosen from a single document, ascending.
type PageSelection struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Pages        []int  `json:"pages"`
}

// File is one uploaded input. Its bytes are held in Data or spooled to a
// temp file at Path and read only when the file is processed.
type File struct {
	Name string
	Data []byte
	Path string
}

// Bytes returns the file content, reading the spooled copy when Data is nil.
func (f File) Bytes() ([]byte, error) {
	if f.Data != nil || f.Path == "" {
		return f.Data, nil
	}
	return os.ReadFile(f.Path)
}

// Remove deletes the spooled copy, if there is one.
func (f File) Remove() error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Source is an opened page document. Page numbers are 1-based.
type Source interface {
	NumPages() int
	Fragments(ctx context.Context, page int) ([]TextFragment, error)
	Render(ctx context.Context, page int, scale float64) ([]byte, error)
	Close() error
}

// Opener opens raw file bytes as a page document.
type Opener interface {
	Open(ctx context.Context, name string, data []byte) (Source, error)
}
