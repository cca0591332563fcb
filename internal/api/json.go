package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/sowilo/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a domain error onto an HTTP status. Unclassified errors are
// logged and reported as internal errors without detail.
func writeError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrAlreadyInitialized),
		errors.Is(err, apperr.ErrDuplicateAddress):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrUploadsDisabled):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrUploadTooLarge):
		status = http.StatusRequestEntityTooLarge
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
