// internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := Envelope{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	respondJSON(w, logger, status, message, nil)
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrEmptyOperation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrDuplicateLine),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrReferenceNotFound):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductInUse):
		return http.StatusConflict
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err with the status the ledger contract assigns
// it. Internal failures are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, action string, err error) {
	status := statusFor(err)

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(1))
		logger.WarnContext(r.Context(), action+" temporarily unavailable",
			slog.String("error", err.Error()))
		respondError(w, logger, status, "Service temporarily unavailable, retry the request")
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), action+" failed",
			slog.String("error", err.Error()))
		respondError(w, logger, status, "Internal server error")
	default:
		respondError(w, logger, status, err.Error())
	}
}
