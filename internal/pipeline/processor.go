package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/dgallion1/pdfsearch/internal/ocr"
)

// ProgressFunc observes batch progress as a percentage in [0, 100].
type ProgressFunc func(pct int)

// FileError reports the file, and page when known, where a batch failed.
type FileError struct {
	Name string
	Page int // 0 when the failure is not tied to a page
	Err  error
}

func (e *FileError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s page %d: %v", e.Name, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Processor turns uploaded files into documents, one file and one page at a
// time.
type Processor struct {
	opener   document.Opener
	fallback *ocr.Fallback
	log      *slog.Logger
	now      func() time.Time
}

func NewProcessor(opener document.Opener, fallback *ocr.Fallback, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		opener:   opener,
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
}

// ProcessFiles extracts every page of every file in input order. It returns
// all documents or an error; a failed batch yields no documents. progress,
// if non-nil, receives 0 first and then a value after each page.
func (p *Processor) ProcessFiles(ctx context.Context, files []document.File, progress ProgressFunc) ([]document.Document, error) {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}
	report(0)

	at := p.now()
	docs := make([]document.Document, 0, len(files))
	for f, file := range files {
		doc, err := p.processFile(ctx, file, f, len(files), report)
		if err != nil {
			p.log.Error("batch failed", "file", file.Name, "error", err)
			return nil, err
		}
		doc.ID = DocumentID(file.Name, at, f)
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *Processor) processFile(ctx context.Context, file document.File, f, total int, report ProgressFunc) (document.Document, error) {
	log := p.log.With("file", file.Name)

	data, err := file.Bytes()
	if err != nil {
		return document.Document{}, &FileError{Name: file.Name, Err: err}
	}
	src, err := p.opener.Open(ctx, file.Name, data)
	if err != nil {
		return document.Document{}, &FileError{Name: file.Name, Err: err}
	}
	defer src.Close()

	n := src.NumPages()
	log.Info("processing file", "pages", n)

	doc := document.Document{
		Name:       file.Name,
		TotalPages: n,
		Pages:      make([]document.PageContent, 0, n),
	}

	ocrPages := 0
	for i := 1; i <= n; i++ {
		res, err := p.fallback.EnsureText(ctx, sourcePage{src: src, n: i})
		if err != nil {
			return document.Document{}, &FileError{Name: file.Name, Page: i, Err: err}
		}
		if res.OCR {
			ocrPages++
		}
		doc.Pages = append(doc.Pages, document.PageContent{
			PageNumber: i,
			Text:       res.Text,
			Lines:      res.Lines,
			OCR:        res.OCR,
		})
		report(Progress(f, total, i, n))
	}
	if n == 0 {
		report(Progress(f+1, total, 0, 1))
	}

	log.Info("file processed", "pages", n, "ocr_pages", ocrPages)
	return doc, nil
}

// Progress returns the batch percentage after page i of n in file f (0-based)
// of total files. Each file owns an equal share of the bar.
func Progress(f, total, i, n int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	pct := float64(f)/float64(total)*100 + (float64(i)/float64(n)*100)/float64(total)
	return int(math.Round(pct))
}

// sourcePage binds one page number of a source to the ocr.Page interface.
type sourcePage struct {
	src document.Source
	n   int
}

func (p sourcePage) Fragments(ctx context.Context) ([]document.TextFragment, error) {
	return p.src.Fragments(ctx, p.n)
}

func (p sourcePage) Render(ctx context.Context, scale float64) ([]byte, error) {
	return p.src.Render(ctx, p.n, scale)
}
