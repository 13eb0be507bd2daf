package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pAIrprogio/synscript-sub000/internal/entryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *entryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entries.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/*", h.GetEntry)
	r.Delete("/entries/*", h.DeleteEntry)

	// Matching.
	r.Post("/match", h.Match)
	r.Post("/match/any", h.MatchAny)

	// Cache control.
	r.Post("/refresh", h.Refresh)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
