package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/dgallion1/pdfsearch/internal/parser"
	"github.com/dgallion1/pdfsearch/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// maxBatchFiles bounds the number of files accepted in one upload.
const maxBatchFiles = 64

// handleUpload queues every file of a multipart upload as one batch. The
// batch is rejected as a whole if any file fails the upload checks.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxBatchFiles+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(headers) > maxBatchFiles {
		jsonError(w, fmt.Sprintf("too many files (max %d)", maxBatchFiles), http.StatusBadRequest)
		return
	}

	files := make([]document.File, 0, len(headers))
	discard := func() {
		for _, f := range files {
			f.Remove()
		}
	}
	for _, fh := range headers {
		filename := parser.SanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			discard()
			jsonError(w, fmt.Sprintf("%s: unsupported file type: %s", filename, filepath.Ext(filename)), http.StatusBadRequest)
			return
		}

		file, err := spoolUpload(fh, filename, s.cfg.MaxUploadBytes)
		if errors.Is(err, errFileTooLarge) {
			discard()
			jsonError(w, fmt.Sprintf("%s: file exceeds max size (%d bytes)", filename, s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			discard()
			s.log.Error("spool upload", "file", filename, "error", err)
			jsonError(w, filename+": failed to read file", http.StatusInternalServerError)
			return
		}
		files = append(files, file)
	}

	// A rejected job is failed by Submit, which removes the spooled files.
	job := pipeline.NewJob(files)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    job.ID,
		"status":    pipeline.StatusQueued,
		"filenames": job.Filenames,
		"poll_url":  fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

var errFileTooLarge = errors.New("file exceeds max size")

// spoolUpload copies one upload to a temp file so a queued batch holds paths
// rather than file bytes.
func spoolUpload(fh *multipart.FileHeader, name string, limit int64) (document.File, error) {
	src, err := fh.Open()
	if err != nil {
		return document.File{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "pdfsearch-upload-*.pdf")
	if err != nil {
		return document.File{}, fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = errFileTooLarge
	}
	if err != nil {
		os.Remove(tmp.Name())
		return document.File{}, err
	}
	return document.File{Name: name, Path: tmp.Name()}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
