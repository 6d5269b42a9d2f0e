package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const msgTemporarilyUnavailable = "Service temporarily unavailable"

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error     string              `json:"error"`
	Field     string              `json:"field,omitempty"`
	Available domain.Availability `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Storage and carrier
// failures are logged and reported as temporarily unavailable.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, operation string) {
	ctx := r.Context()
	logEntry := logger.With("operation", operation, "error", err)

	var (
		validationErr *domain.ValidationError
		exhaustedErr  *domain.PoolExhaustedError
	)
	switch {
	case errors.As(err, &validationErr):
		logEntry.WarnContext(ctx, "Validation error")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Error(), Field: validationErr.Field})
	case errors.As(err, &exhaustedErr):
		logEntry.WarnContext(ctx, "Pool exhausted")
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: exhaustedErr.Error(), Available: exhaustedErr.Available})
	case errors.Is(err, domain.ErrNotFound):
		logEntry.InfoContext(ctx, "Resource not found")
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTokenMismatch), errors.Is(err, domain.ErrProxyImmutable), errors.Is(err, domain.ErrAlreadyExists):
		logEntry.WarnContext(ctx, "Conflict")
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, domain.ErrCarrierFailure):
		logEntry.ErrorContext(ctx, "Dependency unavailable")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: msgTemporarilyUnavailable})
	default:
		logEntry.ErrorContext(ctx, "Unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
