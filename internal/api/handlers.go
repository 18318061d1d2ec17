package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/parser"
	"github.com/iteam-company/blockpress/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Convert handles POST /convert.
//
// The body is either a ConvertRequest or, with a text/markdown or text/html
// content type, the raw document. ?store=true persists the result and
// returns the stored document; ?envelope=article wraps an unstored result in
// the CMS article envelope.
//
//	@Summary		Convert a Markdown or HTML document into blocks
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body		body		ConvertRequest	true	"Document to convert"
//	@Param			store		query		bool			false	"Persist the result"
//	@Param			envelope	query		string			false	"Response shape"	Enums(article)
//	@Success		200			{object}	models.Document
//	@Success		201			{object}	models.StoredDocument
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, ok := decodeConvertRequest(w, r)
	if !ok {
		return
	}

	creq := converter.Request{
		Source:   req.Source,
		Format:   converter.Format(req.Format),
		Metadata: req.Metadata,
		Images:   req.Images,
	}
	q := r.URL.Query()

	if persist, _ := strconv.ParseBool(q.Get("store")); persist {
		stored, err := h.svc.Publish(r.Context(), creq, docservice.PublishOptions{Slug: req.Slug, Overwrite: req.Overwrite})
		if err != nil {
			writeError(w, "publish", err)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
		return
	}

	doc, err := h.svc.Convert(r.Context(), creq)
	if err != nil {
		writeError(w, "convert", err)
		return
	}
	if q.Get("envelope") == "article" {
		writeJSON(w, http.StatusOK, doc.Article())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func decodeConvertRequest(w http.ResponseWriter, r *http.Request) (ConvertRequest, bool) {
	var req ConvertRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "text/markdown", "text/html", "text/plain":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return req, false
		}
		req.Source = string(body)
		switch mediaType {
		case "text/markdown":
			req.Format = string(converter.FormatMarkdown)
		case "text/html":
			req.Format = string(converter.FormatHTML)
		}
		req.Slug = r.URL.Query().Get("slug")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return req, false
		}
	}

	if strings.TrimSpace(req.Source) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source is required"))
		return req, false
	}
	switch converter.Format(req.Format) {
	case "", converter.FormatMarkdown, converter.FormatHTML:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be markdown or html"))
		return req, false
	}
	return req, true
}

// ResolveInline handles POST /inline.
//
//	@Summary		Resolve inline formatting of a text run
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InlineRequest	true	"Text run"
//	@Success		200		{object}	InlineResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/inline [post]
func (h *Handler) ResolveInline(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req InlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, InlineResponse{Children: parser.ResolveInline(req.Text)})
}

// ListDocuments handles GET /documents.
//
//	@Summary		List stored documents
//	@Tags			documents
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			sort		query		string	false	"Sort field"	Enums(updated, title)
//	@Success		200			{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), store.ListOptions{
		Limit:    limit,
		Offset:   offset,
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /documents/{slug}.
//
//	@Summary		Get a stored document
//	@Tags			documents
//	@Produce		json
//	@Param			slug	path		string	true	"Document slug"
//	@Success		200		{object}	models.StoredDocument
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{slug} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{slug}.
//
//	@Summary		Delete a stored document
//	@Tags			documents
//	@Param			slug	path	string	true	"Document slug"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{slug} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across stored documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
