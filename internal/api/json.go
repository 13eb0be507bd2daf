package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
	"github.com/pAIrprogio/synscript-sub000/internal/query"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

// readJSON decodes the request body into v. On failure it writes a 400 and
// returns false.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, op string, err error, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotMember), errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidEntry),
		errors.Is(err, apperr.ErrDuplicateID),
		errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, query.ErrTypeMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		args := make([]any, 0, len(attrs)+1)
		for _, a := range attrs {
			args = append(args, a)
		}
		args = append(args, slog.String("error", err.Error()))
		slog.Error(op+" failed", args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// decodeInput turns a raw JSON document into a match input.
func decodeInput(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, apperr.ErrInvalidInput
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, apperr.ErrInvalidInput
	}
	return v, nil
}
