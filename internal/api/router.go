package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/media"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// resolver, if non-nil, serves GET /attachments/{filename} without auth and
// accepts uploads at POST /attachments.
func NewRouter(svc *docservice.Service, resolver *media.Resolver, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Stored images are referenced from published documents, so they stay
	// public.
	var ah *AttachmentHandler
	if resolver != nil {
		ah = NewAttachmentHandler(resolver)
		r.Get("/attachments/{filename}", ah.ServeFile)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Conversion.
		r.Post("/convert", h.Convert)
		r.Post("/inline", h.ResolveInline)

		// Stored documents.
		r.Get("/documents", h.ListDocuments)
		r.Get("/documents/{slug}", h.GetDocument)
		r.Delete("/documents/{slug}", h.DeleteDocument)

		// Search.
		r.Get("/search", h.Search)

		if ah != nil {
			r.Post("/attachments", ah.Upload)
		}

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
