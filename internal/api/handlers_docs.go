package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/dgallion1/pdfsearch/internal/search"
	"github.com/go-chi/chi/v5"
)

type documentSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalPages int    `json:"total_pages"`
}

// handleListDocuments lists the collection in insertion order.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.docs.Snapshot()
	out := make([]documentSummary, len(docs))
	for i, d := range docs {
		out[i] = documentSummary{ID: d.ID, Name: d.Name, TotalPages: d.TotalPages}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.docs.Get(chi.URLParam(r, "docID"))
	if !ok {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.docs.Get(chi.URLParam(r, "docID"))
	if !ok {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "page must be a number", http.StatusBadRequest)
		return
	}
	page, ok := doc.Page(n)
	if !ok {
		jsonError(w, "page not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if !s.docs.Remove(docID) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.log.Info("document removed", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	n := s.docs.Clear()
	s.log.Info("collection cleared", "documents", n)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

type searchHit struct {
	document.SearchResult
	HTML string `json:"html"`
}

// handleSearch runs a case-insensitive substring search over every line.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	results := search.Search(s.docs.Snapshot(), term)

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{SearchResult: res, HTML: search.Highlight(res.LineText, term)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"term":    term,
		"count":   len(hits),
		"results": hits,
	})
}

type selectionRequest struct {
	Results []document.SearchResult `json:"results"`
}

// handleSelection turns selected results into the per-document page plan.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	plan := search.SelectPages(s.docs.Snapshot(), req.Results)
	if plan == nil {
		plan = []document.PageSelection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"selections": plan})
}
