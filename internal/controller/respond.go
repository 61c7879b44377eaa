package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps typed errors to a status: bad input is 400 and not
// retryable, a failed query is 503 and retryable.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case appErrors.IsConfig(err):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case appErrors.IsNotFound(err):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case appErrors.IsRetryable(err):
		log.Error().Err(err).Msg("request failed")
		WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, try again", Retryable: true})
	default:
		log.Error().Err(err).Msg("unexpected error")
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// BadRequest answers a malformed request body or parameter.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
