package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/pdfsearch/internal/config"
	"github.com/dgallion1/pdfsearch/internal/ocr"
	"github.com/dgallion1/pdfsearch/internal/pipeline"
	"github.com/dgallion1/pdfsearch/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for pdfsearch.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	docs         *store.Collection
	ocrStats     *ocr.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. ocrStats may be nil.
func NewServer(orch *pipeline.Orchestrator, docs *store.Collection, ocrStats *ocr.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		docs:         docs,
		ocrStats:     ocrStats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents", s.handleClearDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Get("/api/documents/{docID}/pages/{page}", s.handleGetPage)

		r.Get("/api/search", s.handleSearch)
		r.Post("/api/selection", s.handleSelection)

		r.Get("/api/stats/ocr", s.handleOCRStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
