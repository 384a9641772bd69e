package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pdfsearch/internal/config"
	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/dgallion1/pdfsearch/internal/ocr"
	"github.com/dgallion1/pdfsearch/internal/parser"
	"github.com/dgallion1/pdfsearch/internal/pipeline"
	"github.com/dgallion1/pdfsearch/internal/store"
)

// stubOpener treats the bytes after the PDF header as "|"-separated pages.
type stubOpener struct{}

func (stubOpener) Open(ctx context.Context, name string, data []byte) (document.Source, error) {
	if !parser.LooksLikePDF(data) {
		return nil, fmt.Errorf("%w: missing header", document.ErrUnreadable)
	}
	body := strings.TrimPrefix(string(data), "%PDF-")
	return &stubSource{pages: strings.Split(body, "|")}, nil
}

type stubSource struct{ pages []string }

func (s *stubSource) NumPages() int { return len(s.pages) }

func (s *stubSource) Fragments(ctx context.Context, page int) ([]document.TextFragment, error) {
	return []document.TextFragment{{Text: s.pages[page-1], X: 0, Y: 700, Height: 12}}, nil
}

func (s *stubSource) Render(ctx context.Context, page int, scale float64) ([]byte, error) {
	return []byte("png"), nil
}

func (s *stubSource) Close() error { return nil }

type stubRecognizer struct{}

func (stubRecognizer) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	return "Scanned receipt\nTotal 12.00", nil
}

const (
	pageOne = "Quarterly report for the northern region with revenue figures"
	pageTwo = "Appendix listing every invoice issued during the quarter period"
)

func newTestServer(t *testing.T, apiKey string) (*Server, *store.Collection) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:         apiKey,
		MaxQueueSize:   4,
		JobTTL:         time.Hour,
		MaxUploadBytes: 1 << 20,
		OCRProvider:    "tesseract",
		OCRLanguage:    "eng",
	}

	stats := ocr.NewStats(time.Hour)
	fallback := ocr.NewFallback(&ocr.Timed{Recognizer: stubRecognizer{}, Stats: stats})
	docs := store.New()
	orch := pipeline.NewOrchestrator(cfg, pipeline.NewProcessor(stubOpener{}, fallback, log), docs, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, docs, stats, log, cfg), docs
}

func multipartBody(t *testing.T, files map[string]string, order ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(files[name]))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func upload(t *testing.T, s *Server, files map[string]string, order ...string) pipeline.JobSnapshot {
	t.Helper()
	body, ctype := multipartBody(t, files, order...)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &resp)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.JobID, nil))
		var snap pipeline.JobSnapshot
		decode(t, rec, &snap)
		if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", resp.JobID)
	return pipeline.JobSnapshot{}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(t, s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, "")
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestUploadSearchAndBrowse(t *testing.T) {
	s, docs := newTestServer(t, "")

	snap := upload(t, s, map[string]string{
		"report.pdf": "%PDF-" + pageOne + "|" + pageTwo,
		"scan.pdf":   "%PDF-",
	}, "report.pdf", "scan.pdf")
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed job, got %s (%s)", snap.Status, snap.Error)
	}
	if snap.Progress != 100 || len(snap.DocumentIDs) != 2 {
		t.Fatalf("unexpected job snapshot %+v", snap)
	}
	if docs.Len() != 2 {
		t.Fatalf("expected 2 documents, got %d", docs.Len())
	}
	reportID := snap.DocumentIDs[0]

	// List.
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	var list struct {
		Documents []documentSummary `json:"documents"`
	}
	decode(t, rec, &list)
	if len(list.Documents) != 2 || list.Documents[0].Name != "report.pdf" || list.Documents[0].TotalPages != 2 {
		t.Errorf("unexpected listing %+v", list.Documents)
	}

	// Page.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/"+reportID+"/pages/2", nil))
	var page document.PageContent
	decode(t, rec, &page)
	if page.PageNumber != 2 || page.Text != pageTwo || page.OCR {
		t.Errorf("unexpected page %+v", page)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/"+reportID+"/pages/9", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing page, got %d", rec.Code)
	}

	// Scanned document went through recognition.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/"+snap.DocumentIDs[1], nil))
	var scan document.Document
	decode(t, rec, &scan)
	if len(scan.Pages) != 1 || !scan.Pages[0].OCR || scan.Pages[0].Lines[1] != "Total 12.00" {
		t.Errorf("unexpected scanned document %+v", scan)
	}

	// Search.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/search?q=INVOICE", nil))
	var found struct {
		Count   int         `json:"count"`
		Results []searchHit `json:"results"`
	}
	decode(t, rec, &found)
	if found.Count != 1 || found.Results[0].PageNumber != 2 || found.Results[0].DocumentID != reportID {
		t.Fatalf("unexpected search results %+v", found)
	}
	if !strings.Contains(found.Results[0].HTML, "<mark>invoice</mark>") {
		t.Errorf("expected highlighted html, got %q", found.Results[0].HTML)
	}

	// Selection.
	hit := found.Results[0].SearchResult
	sel, _ := json.Marshal(selectionRequest{Results: []document.SearchResult{hit, hit}})
	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/api/selection", bytes.NewReader(sel)))
	var plan struct {
		Selections []document.PageSelection `json:"selections"`
	}
	decode(t, rec, &plan)
	if len(plan.Selections) != 1 || len(plan.Selections[0].Pages) != 1 || plan.Selections[0].Pages[0] != 2 {
		t.Errorf("unexpected selection plan %+v", plan.Selections)
	}

	// OCR stats recorded the scanned page.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/ocr", nil))
	var stats struct {
		Stats ocr.StatsSnapshot `json:"stats"`
	}
	decode(t, rec, &stats)
	if stats.Stats.Count != 1 {
		t.Errorf("expected 1 recognition recorded, got %d", stats.Stats.Count)
	}

	// Delete and clear.
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+reportID, nil)
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/api/documents/"+reportID, nil)
	if rec := do(t, s, req); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/documents", nil))
	var cleared struct {
		Deleted int `json:"deleted"`
	}
	decode(t, rec, &cleared)
	if cleared.Deleted != 1 || docs.Len() != 0 {
		t.Errorf("expected 1 cleared and empty collection, got %d and %d", cleared.Deleted, docs.Len())
	}
}

func TestUpload_FailedBatchAddsNothing(t *testing.T) {
	s, docs := newTestServer(t, "")

	snap := upload(t, s, map[string]string{
		"good.pdf": "%PDF-" + pageOne,
		"bad.pdf":  "not a pdf at all",
	}, "good.pdf", "bad.pdf")
	if snap.Status != pipeline.StatusFailed {
		t.Fatalf("expected failed job, got %s", snap.Status)
	}
	if !strings.Contains(snap.Error, "bad.pdf") {
		t.Errorf("expected error to name the file, got %q", snap.Error)
	}
	if docs.Len() != 0 {
		t.Errorf("expected empty collection, got %d", docs.Len())
	}
}

func TestUpload_Rejections(t *testing.T) {
	s, _ := newTestServer(t, "")

	body, ctype := multipartBody(t, map[string]string{"notes.txt": "hello"}, "notes.txt")
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}

	body, ctype = multipartBody(t, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty upload, got %d", rec.Code)
	}

	big := "%PDF-" + strings.Repeat("x", 1<<20)
	body, ctype = multipartBody(t, map[string]string{"big.pdf": big}, "big.pdf")
	req = httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, s, req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized file, got %d", rec.Code)
	}
}

func spooled(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "pdfsearch-upload-*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestUpload_SpooledFilesRemoved(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	s, docs := newTestServer(t, "")

	snap := upload(t, s, map[string]string{"a.pdf": "%PDF-" + pageOne}, "a.pdf")
	if snap.Status != pipeline.StatusCompleted || docs.Len() != 1 {
		t.Fatalf("expected completed job with 1 document, got %s with %d", snap.Status, docs.Len())
	}
	if left := spooled(t, dir); len(left) != 0 {
		t.Errorf("expected spool files removed after completion, got %v", left)
	}

	upload(t, s, map[string]string{"bad.pdf": "garbage"}, "bad.pdf")
	if left := spooled(t, dir); len(left) != 0 {
		t.Errorf("expected spool files removed after failure, got %v", left)
	}

	big := "%PDF-" + strings.Repeat("x", 1<<20)
	body, ctype := multipartBody(t, map[string]string{"ok.pdf": "%PDF-" + pageTwo, "big.pdf": big}, "ok.pdf", "big.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, s, req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if left := spooled(t, dir); len(left) != 0 {
		t.Errorf("expected earlier spool files removed after rejection, got %v", left)
	}
}

func TestSpoolUpload(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	body, ctype := multipartBody(t, map[string]string{"a.pdf": "%PDF-1.4 body"}, "a.pdf")
	_, params, err := mime.ParseMediaType(ctype)
	if err != nil {
		t.Fatal(err)
	}
	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer form.RemoveAll()
	fh := form.File["files"][0]

	file, err := spoolUpload(fh, "a.pdf", 1024)
	if err != nil {
		t.Fatalf("spool: %v", err)
	}
	if file.Data != nil || file.Path == "" {
		t.Fatalf("expected a path-backed file, got %+v", file)
	}
	data, err := file.Bytes()
	if err != nil || string(data) != "%PDF-1.4 body" {
		t.Errorf("expected spooled content, got %q (%v)", data, err)
	}
	if err := file.Remove(); err != nil {
		t.Errorf("remove: %v", err)
	}

	if _, err := spoolUpload(fh, "a.pdf", 4); !errors.Is(err, errFileTooLarge) {
		t.Errorf("expected errFileTooLarge, got %v", err)
	}
}

func TestSearch_BlankTerm(t *testing.T) {
	s, docs := newTestServer(t, "")
	docs.Add(document.Document{ID: "d1", Name: "a.pdf", TotalPages: 1, Pages: []document.PageContent{
		{PageNumber: 1, Text: "anything", Lines: []string{"anything"}},
	}})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/search?q=%20%20", nil))
	var found struct {
		Count   int         `json:"count"`
		Results []searchHit `json:"results"`
	}
	decode(t, rec, &found)
	if found.Count != 0 || len(found.Results) != 0 {
		t.Errorf("expected no results for blank term, got %+v", found)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSelection_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/selection", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
