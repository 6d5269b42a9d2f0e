package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// ClientHandler exposes the client directory.
type ClientHandler struct {
	clients  ClientService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewClientHandler creates a ClientHandler.
func NewClientHandler(clients ClientService, logger *slog.Logger, validate *validator.Validate) *ClientHandler {
	return &ClientHandler{
		clients:  clients,
		logger:   logger.With("handler", "client"),
		validate: validate,
	}
}

func clientIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "client_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HandleGet returns one client.
func (h *ClientHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	id, ok := clientIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid client id", Field: "client_id"})
		return
	}
	client, err := h.clients.GetByID(ctx, id)
	if err != nil {
		writeError(w, r, logger, err, "get client")
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// HandleCreate provisions a client and binds a proxy to it.
func (h *ClientHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req CreateClientRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	numberType, err := parseNumberType(req.NumberType)
	if err != nil {
		writeError(w, r, logger, err, "create client")
		return
	}
	client, err := h.clients.Create(ctx, app.CreateClientRequest{
		Contact:    req.Contact.toDomain(),
		CountryISO: req.CountryISO,
		NumberType: numberType,
	})
	if err != nil {
		writeError(w, r, logger, err, "create client")
		return
	}
	logger.InfoContext(ctx, "Client created", "client_id", client.ID, "proxy_number", client.ProxyNumber)
	writeJSON(w, http.StatusCreated, client)
}

// HandleUpdate changes contact details. The proxy number never changes.
func (h *ClientHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	id, ok := clientIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid client id", Field: "client_id"})
		return
	}
	var req UpdateClientRequestDTO
	if !decodeAndValidate(w, r, logger, h.validate, &req) {
		return
	}
	contact := domain.Contact{Name: req.Name, Mail: req.Mail, Phone: req.Phone}
	if contact.IsZero() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "nothing to update"})
		return
	}

	client, fields, err := h.clients.UpdateContact(ctx, id, contact)
	if err != nil {
		writeError(w, r, logger, err, "update client")
		return
	}
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, UpdateClientResponse{Client: client, UpdatedFields: fields})
}
