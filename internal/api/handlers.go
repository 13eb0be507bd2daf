package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pAIrprogio/synscript-sub000/internal/entryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *entryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *entryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// entryID extracts the entry id from the URL (everything after /api/entries/).
// Supports encoded slashes from OpenAPI clients (e.g. buttons%2Fvariants).
func entryID(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries with optional pagination and type filter
//	@Tags			entries
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			type	query		string	false	"Filter by entry type"
//	@Success		200		{object}	EntryListResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListEntries(r.Context(), limit, offset, q.Get("type"))
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: total})
}

// GetEntry handles GET /api/entries/*.
//
//	@Summary		Get a single entry by id
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	EntryDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := entryID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get entry", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create a new entry file and refresh
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to create"
//	@Success		201		{object}	EntryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	entry, err := h.svc.Create(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create entry", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteEntry handles DELETE /api/entries/*.
//
//	@Summary		Delete an entry file and refresh
//	@Tags			entries
//	@Param			id	path	string	true	"Entry id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := entryID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete entry", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Match handles POST /api/match.
//
//	@Summary		Match one input against every entry query
//	@Tags			match
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MatchRequest	true	"Input to match"
//	@Success		200		{object}	MatchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/match [post]
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !readJSON(w, r, &req) {
		return
	}
	input, err := decodeInput(req.Input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("input is required"))
		return
	}
	entries, err := h.svc.Match(r.Context(), input, req.SkipEmpty)
	if err != nil {
		writeError(w, "match", err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Entries: entries})
}

// MatchAny handles POST /api/match/any.
//
//	@Summary		Match several inputs and merge the results
//	@Tags			match
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MatchAnyRequest	true	"Inputs to match"
//	@Success		200		{object}	MatchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/match/any [post]
func (h *Handler) MatchAny(w http.ResponseWriter, r *http.Request) {
	var req MatchAnyRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Inputs == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("inputs is required"))
		return
	}
	inputs := make([]any, len(req.Inputs))
	for i, raw := range req.Inputs {
		v, err := decodeInput(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("inputs["+strconv.Itoa(i)+"] is invalid"))
			return
		}
		inputs[i] = v
	}
	entries, err := h.svc.MatchAny(r.Context(), inputs, req.SkipEmpty)
	if err != nil {
		writeError(w, "match any", err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Entries: entries})
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Drop all caches and reload entries from disk
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	RefreshResult
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/search.
//
//	@Summary		Text search across entries
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
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
