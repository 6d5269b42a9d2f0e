package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// ConfirmationHandler exposes the phone verification workflow.
type ConfirmationHandler struct {
	confirmations ConfirmationService
	expiry        ExpiryService
	logger        *slog.Logger
	validate      *validator.Validate
}

// NewConfirmationHandler creates a ConfirmationHandler.
func NewConfirmationHandler(confirmations ConfirmationService, expiry ExpiryService, logger *slog.Logger, validate *validator.Validate) *ConfirmationHandler {
	return &ConfirmationHandler{
		confirmations: confirmations,
		expiry:        expiry,
		logger:        logger.With("handler", "confirmation"),
		validate:      validate,
	}
}

// HandleIntake registers a pending confirmation.
func (h *ConfirmationHandler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req IntakeRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}

	pending, err := h.confirmations.Intake(ctx, app.IntakeRequest{
		PendingID:  req.PendingID,
		Contact:    req.Contact.toDomain(),
		CountryISO: req.CountryISO,
		NumberType: req.NumberType,
	})
	if err != nil {
		writeError(w, r, logger, err, "intake")
		return
	}
	writeJSON(w, http.StatusCreated, pending)
}

// HandleStart reserves a proxy for a pending confirmation and sends the OTP.
// A failed SMS leaves the reservation in place and answers 202 with
// otp_sent=false so the caller can ask for a resend.
func (h *ConfirmationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	pendingID := chi.URLParam(r, "pending_id")
	logger := h.logger.With("request_id", requestID, "pending_id", pendingID)

	var req StartConfirmationRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	numberType, err := parseNumberType(req.NumberType)
	if err != nil {
		writeError(w, r, logger, err, "start confirmation")
		return
	}
	in := app.CreatePendingRequest{PendingID: pendingID, CountryISO: req.CountryISO, NumberType: numberType}
	if req.Contact != nil {
		in.Contact = req.Contact.toDomain()
	}

	result, err := h.confirmations.CreatePending(ctx, in)
	if err != nil {
		if result != nil && errors.Is(err, domain.ErrCarrierFailure) {
			logger.WarnContext(ctx, "Proxy reserved but OTP not sent", "error", err, "proxy_number", result.ProxyNumber)
			writeJSON(w, http.StatusAccepted, result)
			return
		}
		writeError(w, r, logger, err, "start confirmation")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleVerify checks an OTP submitted through the API rather than by SMS.
func (h *ConfirmationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req VerifyRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}

	result, err := h.confirmations.VerifyOtp(ctx, req.ProxyNumber, req.OriginNumber, req.Code)
	if err != nil {
		writeError(w, r, logger, err, "verify otp")
		return
	}
	status := http.StatusOK
	switch result.Outcome {
	case domain.OutcomeInvalidCode:
		status = http.StatusUnprocessableEntity
	case domain.OutcomeNoPending:
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

// HandleExpire expires pending confirmations older than the given age and
// releases their proxies.
func (h *ConfirmationHandler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req ExpireRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}

	result, err := h.expiry.SweepOlderThan(ctx, *req.Hours)
	if err != nil {
		writeError(w, r, logger, err, "expire pending")
		return
	}
	logger.InfoContext(ctx, "Pending confirmations expired", "hours", *req.Hours, "expired", len(result.Expired), "released", result.Released)
	writeJSON(w, http.StatusOK, result)
}
