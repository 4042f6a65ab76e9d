package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/prompt"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures after WriteHeader cannot be reported to the client; they are
// only logged.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
	}
}

// ErrorResponse is the JSON body of error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, logger log.Logger, status int, code, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps domain sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, logger log.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, logger, http.StatusForbidden, "permission_denied", "You do not have permission to perform this action.")
	case errors.Is(err, faq.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, index.ErrChunkNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, faq.ErrInvalidInput):
		writeError(w, logger, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, prompt.ErrMalformedPrompt):
		writeError(w, logger, http.StatusUnprocessableEntity, "malformed_prompt", err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "internal", "internal server error")
	}
}
