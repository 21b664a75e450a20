package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfqa/internal/domain"
)

const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, s.tooLarge())
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), domain.Code(domain.ErrInvalidInput), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), domain.Code(domain.ErrInvalidInput), http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Read one byte past the limit so the store sees the oversize.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", "internal", http.StatusInternalServerError)
		return
	}

	if len(data) == 0 {
		jsonError(w, "file is empty", domain.Code(domain.ErrInvalidInput), http.StatusBadRequest)
		return
	}

	h, err := s.orchestrator.Ingest(sanitizeFilename(header.Filename), data)
	if err != nil {
		s.log.Warn("upload rejected", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"message":     "PDF successfully uploaded and processing started",
		"document_id": h.ID,
		"status":      h.State,
		"status_url":  "/api/document",
	})
}

func (s *Server) tooLarge() error {
	return domain.WrapError(domain.ErrPayloadTooLarge, "upload",
		fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes))
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.orchestrator.Status())
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
