package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iteam-company/blockpress/internal/media"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AttachmentHandler serves and accepts image files through the media
// resolver.
type AttachmentHandler struct {
	resolver *media.Resolver
}

// NewAttachmentHandler creates a handler backed by resolver.
func NewAttachmentHandler(resolver *media.Resolver) *AttachmentHandler {
	return &AttachmentHandler{resolver: resolver}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename != filepath.Base(filename) {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	data, mime, err := h.resolver.Open(filename)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

// Upload handles POST /attachments (multipart/form-data, field "file") and
// returns the stored image record.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	rec, err := h.resolver.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, "upload attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
