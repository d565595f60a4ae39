// ABOUTME: JSON response envelope and error mapping for the HTTP surface
// ABOUTME: Every response carries the stable {success, message, data} shape

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/2389/shopdesk/internal/catalog"
	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/store"
	"github.com/2389/shopdesk/internal/upload"
)

// envelope is the stable response shape shared by all endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("encoding response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// respondServiceError maps the error taxonomy onto HTTP statuses:
// invalid input 400, not found 404, duplicates 409, everything else 500.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, upload.ErrTooLarge),
		errors.Is(err, upload.ErrUnsupportedType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateItemCode),
		errors.Is(err, store.ErrDuplicateUserName):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
