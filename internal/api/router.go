package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartyoni/checkdoc/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Controller state.
	r.Get("/state", h.GetState)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Post("/documents/blank", h.NewBlankDocument)
	r.Get("/documents/{id}", h.GetDocument)
	r.Post("/documents/{id}/select", h.SelectDocument)
	r.Post("/documents/{id}/favorite", h.SetFavorite)
	r.Delete("/favorite", h.ClearFavorite)

	// Templates.
	r.Get("/templates", h.ListTemplates)
	r.Post("/templates/blank", h.NewBlankTemplate)
	r.Post("/templates/{id}/preview", h.PreviewTemplate)
	r.Post("/templates/{id}/edit", h.EditTemplate)

	// Save / autosave.
	r.Post("/save", h.Save)
	r.Post("/autosave", h.Autosave)

	// Two-step delete.
	r.Post("/deletions", h.RequestDelete)
	r.Post("/deletions/execute", h.ExecuteDelete)
	r.Delete("/deletions", h.CancelDelete)

	// Reorder.
	r.Post("/reorder", h.Reorder)

	// Backup / restore.
	r.Get("/export", h.Export)
	r.Post("/restore", h.Restore)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
