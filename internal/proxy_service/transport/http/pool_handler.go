package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// PoolHandler exposes pool administration.
type PoolHandler struct {
	pool     PoolService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pool PoolService, logger *slog.Logger, validate *validator.Validate) *PoolHandler {
	return &PoolHandler{
		pool:     pool,
		logger:   logger.With("handler", "pool"),
		validate: validate,
	}
}

// HandleAvailable lists available numbers of ?country= and optional ?number_type=.
func (h *PoolHandler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	country, err := domain.NormalizeCountryISO("country", r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, r, logger, err, "list available")
		return
	}
	numberType, err := parseNumberType(r.URL.Query().Get("number_type"))
	if err != nil {
		writeError(w, r, logger, err, "list available")
		return
	}

	entries, available, err := h.pool.ListAvailable(ctx, country, numberType)
	if err != nil {
		writeError(w, r, logger, err, "list available")
		return
	}
	if entries == nil {
		entries = []domain.PoolEntry{}
	}
	writeJSON(w, http.StatusOK, AvailableResponse{Country: country, Numbers: entries, Available: available})
}

// HandleProvision buys numbers from the carrier and appends them to the pool.
func (h *PoolHandler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req ProvisionRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	numberType, err := domain.ParseNumberType(req.NumberType)
	if err != nil {
		writeError(w, r, logger, err, "provision")
		return
	}
	order := domain.Only(numberType)
	if req.Fallback {
		order = domain.WithFallback(numberType)
	}

	results, err := h.pool.Provision(ctx, req.CountryISO, order, req.Quantity)
	if err != nil {
		writeError(w, r, logger, err, "provision")
		return
	}
	resp := ProvisionResponse{Results: results}
	for _, res := range results {
		resp.Added += len(res.Added)
	}
	status := http.StatusCreated
	if resp.Added < req.Quantity {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// HandleRelease frees every row reserved under a token.
func (h *PoolHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req ReleaseRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	released, err := h.pool.Release(ctx, req.Token)
	if err != nil {
		writeError(w, r, logger, err, "release")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

// HandleRemove purges one number from the pool.
func (h *PoolHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil || phone == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid phone number", Field: "phone"})
		return
	}
	entry, err := h.pool.Remove(ctx, phone)
	if err != nil {
		writeError(w, r, logger, err, "remove")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleRewire re-applies carrier webhooks to existing numbers.
func (h *PoolHandler) HandleRewire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req RewireRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	report, err := h.pool.RewireWebhooks(ctx, app.RewireFilter{
		Country: req.CountryISO,
		Status:  domain.PoolStatus(req.Status),
	}, req.DryRun)
	if err != nil {
		writeError(w, r, logger, err, "rewire")
		return
	}
	status := http.StatusOK
	if len(report.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}
