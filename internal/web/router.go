package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(nav Navigator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(nav)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Navigation.
	r.Post("/route", h.Route)
	r.Post("/back", h.Back)
	r.Post("/reload", h.Reload)
	r.Get("/state", h.State)

	// Editing.
	r.Post("/edit", h.Edit)
	r.Put("/edit/{id}", h.CompleteEdit)

	// Recents.
	r.Get("/recents", h.Recents)
	r.Post("/recents/open", h.OpenRecent)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
