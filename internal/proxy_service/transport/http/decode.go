package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// the response has been written and false is returned.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, validate *validator.Validate, dst any) bool {
	ctx := r.Context()
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.WarnContext(ctx, "Failed to decode request JSON", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON format: " + err.Error()})
		return false
	}
	if err := validate.StructCtx(ctx, dst); err != nil {
		logger.WarnContext(ctx, "Failed to validate request", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed: " + err.Error()})
		return false
	}
	return true
}
