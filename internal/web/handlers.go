package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/session"
)

// Navigator is the part of the session the HTTP API drives.
type Navigator interface {
	Route(ctx context.Context, uri string) (linkrouter.Outcome, error)
	Back(ctx context.Context) (navigation.BackOutcome, error)
	Reload(ctx context.Context) error
	Edit(ctx context.Context) (session.EditRequest, error)
	CompleteEdit(ctx context.Context, res session.EditResult) error
	OpenRecent(ctx context.Context, name string) error
	RefreshRecents(ctx context.Context) error
	Snapshot(ctx context.Context) (session.View, error)
}

// Verify *session.Session satisfies Navigator at compile time.
var _ Navigator = (*session.Session)(nil)

// Handler holds API route handlers.
type Handler struct {
	nav Navigator
}

// NewHandler creates a new Handler.
func NewHandler(nav Navigator) *Handler {
	return &Handler{nav: nav}
}

// decode reads a JSON body into v and validates it when v supports it.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(CodeInvalid, "invalid JSON body"))
		return false
	}
	if vv, ok := v.(interface{ Validate() error }); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(CodeInvalid, err.Error()))
			return false
		}
	}
	return true
}

// Route handles POST /api/route.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.nav.Route(r.Context(), req.URI)
	if err != nil {
		writeError(w, "route", err)
		return
	}
	writeJSON(w, http.StatusOK, routeResponse(o))
}

// Back handles POST /api/back.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	o, err := h.nav.Back(r.Context())
	if err != nil {
		writeError(w, "back", err)
		return
	}
	writeJSON(w, http.StatusOK, backResponse(o))
}

// Reload handles POST /api/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.nav.Reload(r.Context()); err != nil {
		writeError(w, "reload", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Edit handles POST /api/edit. The request is also pushed as an "edit" event.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	req, err := h.nav.Edit(r.Context())
	if err != nil {
		writeError(w, "edit", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CompleteEdit handles PUT /api/edit/{id}.
func (h *Handler) CompleteEdit(w http.ResponseWriter, r *http.Request) {
	var req CompleteEditRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.nav.CompleteEdit(r.Context(), session.EditResult{
		RequestID: chi.URLParam(r, "id"),
		Content:   req.Content,
		Cancelled: req.Cancelled,
	})
	if err != nil {
		writeError(w, "complete edit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recents handles GET /api/recents.
func (h *Handler) Recents(w http.ResponseWriter, r *http.Request) {
	if err := h.nav.RefreshRecents(r.Context()); err != nil {
		writeError(w, "refresh recents", err)
		return
	}
	v, err := h.nav.Snapshot(r.Context())
	if err != nil {
		writeError(w, "recents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recents": v.Recents})
}

// OpenRecent handles POST /api/recents/open.
func (h *Handler) OpenRecent(w http.ResponseWriter, r *http.Request) {
	var req OpenRecentRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.nav.OpenRecent(r.Context(), req.Name); err != nil {
		writeError(w, "open recent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State handles GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	v, err := h.nav.Snapshot(r.Context())
	if err != nil {
		writeError(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
