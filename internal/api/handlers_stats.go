package api

import (
	"net/http"
)

func (s *Server) handleOCRStats(w http.ResponseWriter, r *http.Request) {
	if s.ocrStats == nil {
		jsonError(w, "ocr stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider": s.cfg.OCRProvider,
		"language": s.cfg.OCRLanguage,
		"stats":    s.ocrStats.Snapshot(),
	})
}
