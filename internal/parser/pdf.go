// Package parser opens PDF files and exposes their pages as positioned text
// fragments and rendered rasters.
package parser

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dgallion1/pdfsearch/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

const (
	// glyphGapRatio is the widest horizontal gap, as a fraction of font size,
	// that still continues a glyph run.
	glyphGapRatio = 0.3

	// wordGapRatio is the gap, as a fraction of font size, above which a
	// continued run gets a single space. Kerned word spacing lands here.
	wordGapRatio = 0.1
)

// PDFParser opens PDF bytes with ledongthuc/pdf and renders pages with the
// configured rasterizer.
type PDFParser struct {
	Rasterizer *Rasterizer
}

// NewPDFParser creates a parser that renders through r.
func NewPDFParser(r *Rasterizer) *PDFParser {
	return &PDFParser{Rasterizer: r}
}

// Open parses data and returns a page source. The caller must Close it.
func (p *PDFParser) Open(ctx context.Context, name string, data []byte) (document.Source, error) {
	if !LooksLikePDF(data) {
		return nil, fmt.Errorf("%w: %s: missing %%PDF header", document.ErrUnreadable, name)
	}

	// ledongthuc/pdf wants a file, and pdftoppm needs a path anyway.
	tmp, err := os.CreateTemp("", "pdfsearch-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := openPDF(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %s: %v", document.ErrUnreadable, name, err)
	}

	return &pdfSource{
		name:   name,
		path:   path,
		file:   f,
		reader: reader,
		raster: p.Rasterizer,
	}, nil
}

func openPDF(path string) (f *os.File, r *pdflib.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				f.Close()
			}
			f, r, err = nil, nil, fmt.Errorf("parse: %v", rec)
		}
	}()
	return pdflib.Open(path)
}

type pdfSource struct {
	name   string
	path   string
	file   *os.File
	reader *pdflib.Reader
	raster *Rasterizer
}

func (s *pdfSource) NumPages() int {
	return s.reader.NumPage()
}

// Fragments returns the glyph runs of a page. A page without a content
// stream has no fragments.
func (s *pdfSource) Fragments(ctx context.Context, page int) (frags []document.TextFragment, err error) {
	if page < 1 || page > s.NumPages() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", page, s.NumPages())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			frags, err = nil, fmt.Errorf("%w: %s page %d: %v", document.ErrUnreadable, s.name, page, rec)
		}
	}()

	p := s.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	return mergeGlyphs(p.Content().Text), nil
}

func (s *pdfSource) Render(ctx context.Context, page int, scale float64) ([]byte, error) {
	if s.raster == nil {
		return nil, fmt.Errorf("no rasterizer configured")
	}
	if page < 1 || page > s.NumPages() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", page, s.NumPages())
	}
	return s.raster.Render(ctx, s.path, page, scale)
}

func (s *pdfSource) Close() error {
	err := s.file.Close()
	os.Remove(s.path)
	return err
}

// glyphRun accumulates consecutive glyphs that belong to one fragment.
type glyphRun struct {
	font string
	size float64
	x, y float64
	end  float64
	text strings.Builder
}

func (r *glyphRun) continues(t pdflib.Text) bool {
	if t.Font != r.font || t.FontSize != r.size {
		return false
	}
	tol := math.Max(r.size*0.1, 0.5)
	if math.Abs(t.Y-r.y) > tol {
		return false
	}
	gap := t.X - r.end
	return gap >= -r.size*0.5 && gap <= math.Max(r.size, 1)*glyphGapRatio
}

func (r *glyphRun) add(t pdflib.Text) {
	if r.text.Len() > 0 && t.X-r.end > r.size*wordGapRatio {
		r.text.WriteByte(' ')
	}
	r.text.WriteString(t.S)
	w := t.W
	if w <= 0 {
		// Some fonts report no advance width; assume half an em.
		w = t.FontSize * 0.5
	}
	r.end = t.X + w
}

func (r *glyphRun) fragment() document.TextFragment {
	return document.TextFragment{
		Text:   r.text.String(),
		X:      r.x,
		Y:      r.y,
		Height: r.size,
	}
}

// mergeGlyphs joins per-glyph records into runs on the same baseline with
// the same font and no word-sized gap between them. ledongthuc/pdf ends every
// TJ with a "\n" pseudo-glyph; it closes the current run and is not kept.
// Whitespace glyphs are dropped and their advance becomes a gap.
func mergeGlyphs(texts []pdflib.Text) []document.TextFragment {
	var frags []document.TextFragment
	var cur *glyphRun

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.text.String()) != "" {
			frags = append(frags, cur.fragment())
		}
		cur = nil
	}

	for _, t := range texts {
		if t.S == "\n" || t.S == "\r" {
			flush()
			continue
		}
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		if cur != nil && cur.continues(t) {
			cur.add(t)
			continue
		}
		flush()
		cur = &glyphRun{font: t.Font, size: t.FontSize, x: t.X, y: t.Y}
		cur.add(t)
	}
	flush()
	return frags
}
