// Package ocr decides when a page needs image-based recognition and runs it.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/dgallion1/pdfsearch/internal/layout"
)

const (
	// DefaultMinTextLength is the shortest trimmed text layer accepted as real text.
	DefaultMinTextLength = 50
	// DefaultRenderScale is the magnification used when rasterizing for recognition.
	DefaultRenderScale = 2.0
)

// Page is a single page handle. It is used for the duration of one call and
// never retained.
type Page interface {
	Fragments(ctx context.Context) ([]document.TextFragment, error)
	Render(ctx context.Context, scale float64) ([]byte, error)
}

// Result is the text chosen for a page.
type Result struct {
	Text  string
	Lines []string
	OCR   bool
}

// Fallback reconstructs a page's text layer and reroutes pages with too little
// text through rasterization and recognition.
type Fallback struct {
	Recognizer    Recognizer
	Reconstructor *layout.Reconstructor
	MinTextLength int
	RenderScale   float64
	Language      string
}

// NewFallback returns a Fallback with the default threshold, scale and language.
func NewFallback(r Recognizer) *Fallback {
	return &Fallback{
		Recognizer:    r,
		Reconstructor: layout.NewReconstructor(),
		MinTextLength: DefaultMinTextLength,
		RenderScale:   DefaultRenderScale,
		Language:      DefaultLanguage,
	}
}

// NeedsOCR reports whether reconstructed text is too short to trust. The
// threshold counts characters, not bytes.
func (f *Fallback) NeedsOCR(text string) bool {
	min := f.MinTextLength
	if min <= 0 {
		min = DefaultMinTextLength
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) < min
}

// EnsureText returns the page's lines, from the text layer when it holds
// enough text and from recognition otherwise. Render and recognition errors
// are returned, never replaced by an empty page.
func (f *Fallback) EnsureText(ctx context.Context, page Page) (Result, error) {
	frags, err := page.Fragments(ctx)
	if err != nil {
		return Result{}, err
	}

	rec := f.Reconstructor
	if rec == nil {
		rec = layout.NewReconstructor()
	}
	text, lines := rec.Reconstruct(frags)
	if !f.NeedsOCR(text) {
		return Result{Text: text, Lines: lines}, nil
	}

	return f.recognize(ctx, page)
}

func (f *Fallback) recognize(ctx context.Context, page Page) (Result, error) {
	if f.Recognizer == nil {
		return Result{}, fmt.Errorf("%w: no recognizer configured", ErrRecognition)
	}

	scale := f.RenderScale
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	img, err := page.Render(ctx, scale)
	if err != nil {
		return Result{}, fmt.Errorf("render page: %w", err)
	}

	lang := f.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	raw, err := f.Recognizer.Recognize(ctx, img, lang)
	if err != nil {
		return Result{}, fmt.Errorf("recognize page: %w", err)
	}

	lines := SplitLines(raw)
	return Result{Text: strings.Join(lines, "\n"), Lines: lines, OCR: true}, nil
}

// SplitLines splits recognizer output on literal line breaks, trimming each
// line and dropping empty ones.
func SplitLines(raw string) []string {
	parts := strings.Split(raw, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
