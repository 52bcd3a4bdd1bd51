package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartyoni/checkdoc/internal/apperr"
	"github.com/smartyoni/checkdoc/internal/docservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// ListDocuments handles GET /documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": h.svc.Documents()})
}

// GetDocument handles GET /documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /documents. It creates a document of the
// requested kind, seeded from the kind's template when one exists.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	doc, err := h.svc.CreateDocument(r.Context(), req.Kind)
	if err != nil {
		if !req.Kind.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown kind"))
			return
		}
		slog.Error("create document failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// NewBlankDocument handles POST /documents/blank: resets the active editing
// target to a fresh blank document without persisting anything.
func (h *Handler) NewBlankDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.NewBlankDocument())
}

// SelectDocument handles POST /documents/{id}/select.
func (h *Handler) SelectDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.SelectDocument(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SetFavorite handles POST /documents/{id}/favorite.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.SetFavorite(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("set favorite failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearFavorite handles DELETE /favorite.
func (h *Handler) ClearFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearFavorite(r.Context()); err != nil {
		slog.Error("clear favorite failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.svc.Templates()})
}

// NewBlankTemplate handles POST /templates/blank.
func (h *Handler) NewBlankTemplate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.NewBlankTemplate())
}

// PreviewTemplate handles POST /templates/{id}/preview: materializes a
// non-persisted instance and enters TEMPLATE_PREVIEW mode.
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.PreviewTemplate(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// EditTemplate handles POST /templates/{id}/edit: opens the template
// original for direct editing.
func (h *Handler) EditTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.svc.EditTemplateOriginal(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// Save handles POST /save. A 409 response means the template's category is
// held by another template and the save needs confirmReplace=true.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	saved, err := h.svc.Save(r.Context(), req.Document, req.ConfirmReplace)
	if err != nil {
		if errors.Is(err, apperr.ErrCategoryOccupied) {
			writeJSON(w, http.StatusConflict, errorBody("template category occupied"))
			return
		}
		slog.Error("save failed", slog.String("id", req.Document.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Autosave handles POST /autosave: records a debounced edit of the active
// entity. The write happens after the quiet window, not in this request.
func (h *Handler) Autosave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.svc.AutosaveEdit(req.Document)
	w.WriteHeader(http.StatusAccepted)
}

// RequestDelete handles POST /deletions: records a pending delete target.
func (h *Handler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.RequestDelete(req.Type, req.ID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ExecuteDelete handles POST /deletions/execute.
func (h *Handler) ExecuteDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ExecuteDelete(r.Context()); err != nil {
		slog.Error("delete failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelDelete handles DELETE /deletions.
func (h *Handler) CancelDelete(w http.ResponseWriter, _ *http.Request) {
	h.svc.CancelDelete()
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles POST /reorder.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.Reorder(r.Context(), req.Partition, req.IDs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /export: returns the backup blob.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Export(r.Context())
	if err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Restore handles POST /restore: validates and applies a backup blob. An
// invalid blob fails without any partial change.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, RestoreResponse{Message: "failed to read body"})
		return
	}
	if err := h.svc.Restore(r.Context(), data); err != nil {
		if errors.Is(err, apperr.ErrInvalidBackup) {
			writeJSON(w, http.StatusBadRequest, RestoreResponse{Message: err.Error()})
			return
		}
		slog.Error("restore failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, RestoreResponse{Message: "restore failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Success: true, Message: "data restored"})
}
