package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
)

const (
	otpMessageFormat       = "ProxyCall - confirmation code: %s"
	confirmedMessageFormat = "ProxyCall - your number is confirmed. Calls and SMS to %s now reach you."
)

// ConfirmationConfig holds configuration specific to the ConfirmationWorkflow.
type ConfirmationConfig struct {
	OTPLength int `mapstructure:"OTP_LENGTH"`
}

// ConfirmationWorkflow turns a verified phone into a client bound to a proxy.
type ConfirmationWorkflow struct {
	pending  *repository.PendingTable
	pool     *PoolManager
	clients  *ClientDirectory
	carrier  domain.Carrier
	notifier domain.NotificationSink
	events   eventPublisher
	logger   *slog.Logger
	cfg      ConfirmationConfig

	now         func() time.Time
	generateOTP func(length int) (string, error)
}

// NewConfirmationWorkflow creates a ConfirmationWorkflow. notifier and events
// may be nil.
func NewConfirmationWorkflow(
	pending *repository.PendingTable,
	pool *PoolManager,
	clients *ClientDirectory,
	carrier domain.Carrier,
	notifier domain.NotificationSink,
	events domain.EventPublisher,
	log *slog.Logger,
	cfg ConfirmationConfig,
) *ConfirmationWorkflow {
	if cfg.OTPLength < 4 || cfg.OTPLength > 8 {
		cfg.OTPLength = 6
	}
	log = log.With("component", "confirmation_workflow")
	return &ConfirmationWorkflow{
		pending:     pending,
		pool:        pool,
		clients:     clients,
		carrier:     carrier,
		notifier:    notifier,
		events:      eventPublisher{pub: events, logger: log},
		logger:      log,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		generateOTP: GenerateOTP,
	}
}

// IntakeRequest registers a verification request before a proxy is reserved.
type IntakeRequest struct {
	PendingID  string
	Contact    domain.Contact
	CountryISO string
	NumberType string
}

// Intake appends a new pending row holding only the id and contact fields.
func (w *ConfirmationWorkflow) Intake(ctx context.Context, req IntakeRequest) (*domain.PendingConfirmation, error) {
	pendingID := strings.TrimSpace(req.PendingID)
	if pendingID == "" {
		return nil, domain.NewValidationError("pending_id", "missing value", req.PendingID)
	}
	contact, err := domain.NormalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}
	pc := domain.PendingConfirmation{
		PendingID:       pendingID,
		ClientName:      contact.Name,
		ClientMail:      contact.Mail,
		ClientRealPhone: contact.Phone,
		CountryISO:      strings.ToUpper(strings.TrimSpace(req.CountryISO)),
		NumberType:      req.NumberType,
	}

	if _, err := w.pending.FindByID(ctx, pendingID); err == nil {
		return nil, fmt.Errorf("pending %s: %w", pendingID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := w.pending.AppendPending(ctx, pc); err != nil {
		return nil, fmt.Errorf("intake %s: %w", pendingID, err)
	}
	w.logger.InfoContext(ctx, "Pending confirmation registered", "pending_id", pendingID,
		"client_mail", logger.RedactEmail(contact.Mail), "client_real_phone", logger.MaskPhone(contact.Phone))
	return &pc, nil
}

// CreatePendingRequest starts the verification of an existing pending row.
// A non-zero Contact replaces the stored contact fields.
type CreatePendingRequest struct {
	PendingID  string
	CountryISO string
	NumberType domain.NumberType
	Contact    domain.Contact
}

// PendingResult is handed to the caller for OTP delivery.
type PendingResult struct {
	PendingID   string            `json:"pending_id"`
	ProxyNumber string            `json:"proxy_number"`
	NumberType  domain.NumberType `json:"number_type"`
	OTP         string            `json:"-"`
	OTPSent     bool              `json:"otp_sent"`
}

// CreatePending reserves a proxy for pendingID (falling back to the other
// number type), records the OTP and sends it by SMS from the proxy. When the
// SMS fails the result is still returned together with a CarrierError.
func (w *ConfirmationWorkflow) CreatePending(ctx context.Context, req CreatePendingRequest) (*PendingResult, error) {
	res, err := w.createPending(ctx, req)
	outcome := "reserved"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCarrierFailure):
		outcome = "sms_failed"
	case errors.Is(err, domain.ErrPoolExhausted):
		outcome = "exhausted"
	case errors.Is(err, domain.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "unknown_pending"
	default:
		outcome = "error"
	}
	confirmationsCounter.WithLabelValues("create", outcome).Inc()
	return res, err
}

func (w *ConfirmationWorkflow) createPending(ctx context.Context, req CreatePendingRequest) (*PendingResult, error) {
	pendingID := strings.TrimSpace(req.PendingID)
	if pendingID == "" {
		return nil, domain.NewValidationError("pending_id", "missing value", req.PendingID)
	}
	country, err := domain.NormalizeCountryISO("country_iso", req.CountryISO)
	if err != nil {
		return nil, err
	}
	numberType := req.NumberType
	if numberType == "" {
		numberType = domain.NumberTypeMobile
	}

	row, err := w.pending.FindByID(ctx, pendingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown pending_id %s: %w", pendingID, domain.ErrNotFound)
		}
		return nil, err
	}
	switch row.Status {
	case domain.PendingStatusNew, domain.PendingStatusExpired:
	default:
		return nil, fmt.Errorf("pending %s is %s: %w", pendingID, row.Status, domain.ErrAlreadyExists)
	}

	contact := domain.Contact{Name: row.ClientName, Mail: row.ClientMail, Phone: row.ClientRealPhone}
	if !req.Contact.IsZero() {
		contact = req.Contact
	}
	contact, err = domain.NormalizeContact(contact)
	if err != nil {
		return nil, err
	}

	entry, err := w.pool.Reserve(ctx, country, domain.WithFallback(numberType), pendingID)
	if err != nil {
		w.logger.WarnContext(ctx, "Proxy reservation failed", "pending_id", pendingID, "error", err)
		return nil, err
	}

	otp, err := w.generateOTP(w.cfg.OTPLength)
	if err != nil {
		w.releaseQuietly(ctx, entry.ReservationToken, pendingID)
		return nil, err
	}

	now := domain.FormatTimestamp(w.now())
	fields := []repository.Field{
		repository.Set(repository.PendingClientName, contact.Name),
		repository.Set(repository.PendingClientMail, contact.Mail),
		repository.Set(repository.PendingClientRealPhone, contact.Phone),
		repository.Set(repository.PendingCountryISO, country),
		repository.Set(repository.PendingNumberType, string(entry.NumberType)),
		repository.Set(repository.PendingProxyNumber, entry.PhoneNumber),
		repository.Set(repository.PendingOTP, otp),
	}
	if row.CreatedAt == "" || row.Status == domain.PendingStatusExpired {
		fields = append(fields, repository.Set(repository.PendingCreatedAt, now))
	}
	fields = append(fields, repository.Set(repository.PendingStatus, string(domain.PendingStatusPending)))
	if err := w.pending.Write(ctx, row.Row, fields...); err != nil {
		w.releaseQuietly(ctx, entry.ReservationToken, pendingID)
		return nil, fmt.Errorf("record pending %s: %w", pendingID, err)
	}

	w.logger.InfoContext(ctx, "Pending confirmation created", "pending_id", pendingID,
		"proxy_number", logger.MaskPhone(entry.PhoneNumber), "number_type", entry.NumberType)
	w.events.publish(ctx, domain.SubjectConfirmationPrefix+"pending", domain.ConfirmationEvent{
		PendingID: pendingID, Status: domain.PendingStatusPending, ProxyNumber: entry.PhoneNumber, OccurredAt: w.now(),
	})

	res := &PendingResult{PendingID: pendingID, ProxyNumber: entry.PhoneNumber, NumberType: entry.NumberType, OTP: otp}

	if err := w.carrier.ConfigureWebhooks(ctx, entry.PhoneNumber); err != nil {
		w.logger.WarnContext(ctx, "Could not ensure webhooks on proxy", "error", err,
			"proxy_number", logger.MaskPhone(entry.PhoneNumber))
	}
	if err := w.carrier.SendMessage(ctx, entry.PhoneNumber, contact.Phone, fmt.Sprintf(otpMessageFormat, otp)); err != nil {
		w.logger.ErrorContext(ctx, "OTP SMS delivery failed", "error", err, "pending_id", pendingID)
		return res, &domain.CarrierError{Op: "send otp", Err: err}
	}
	res.OTPSent = true
	return res, nil
}

// FindPending returns the PENDING row matching the proxy/origin pair, or nil.
func (w *ConfirmationWorkflow) FindPending(ctx context.Context, proxy, origin string) (*domain.PendingConfirmation, error) {
	all, err := w.pending.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		p := all[i]
		if p.Status == domain.PendingStatusPending &&
			domain.SamePhone(p.ProxyNumber, proxy) && domain.SamePhone(p.ClientRealPhone, origin) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// VerifyResult describes a verification attempt.
type VerifyResult struct {
	Outcome       domain.VerifyOutcome `json:"outcome"`
	PendingID     string               `json:"pending_id,omitempty"`
	ClientID      int64                `json:"client_id,omitempty"`
	ProxyNumber   string               `json:"proxy_number,omitempty"`
	UpdatedFields []string             `json:"updated_fields,omitempty"`
}

// VerifyOtp checks submitted text against the pending OTP of the pair and,
// on match, finalizes the proxy for a new or matched client. A lost
// reservation or an immutable proxy conflict is returned as an error and
// leaves the pending row VERIFIED.
func (w *ConfirmationWorkflow) VerifyOtp(ctx context.Context, proxy, origin, submitted string) (*VerifyResult, error) {
	res, err := w.verifyOtp(ctx, proxy, origin, submitted)
	outcome := "error"
	if err == nil {
		outcome = string(res.Outcome)
	} else if errors.Is(err, domain.ErrTokenMismatch) {
		outcome = "token_mismatch"
	} else if errors.Is(err, domain.ErrProxyImmutable) {
		outcome = "proxy_conflict"
	}
	confirmationsCounter.WithLabelValues("verify", outcome).Inc()
	return res, err
}

func (w *ConfirmationWorkflow) verifyOtp(ctx context.Context, proxy, origin, submitted string) (*VerifyResult, error) {
	pending, err := w.FindPending(ctx, proxy, origin)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return &VerifyResult{Outcome: domain.OutcomeNoPending}, nil
	}
	res := &VerifyResult{PendingID: pending.PendingID, ProxyNumber: pending.ProxyNumber}

	code := ExtractOTP(submitted)
	if pending.OTP == "" || subtle.ConstantTimeCompare([]byte(code), []byte(pending.OTP)) != 1 {
		w.logger.InfoContext(ctx, "Invalid confirmation code", "pending_id", pending.PendingID)
		res.Outcome = domain.OutcomeInvalidCode
		return res, nil
	}

	verifiedAt := domain.FormatTimestamp(w.now())
	if err := w.pending.Write(ctx, pending.Row,
		repository.Set(repository.PendingVerifiedAt, verifiedAt),
		repository.Set(repository.PendingStatus, string(domain.PendingStatusVerified)),
	); err != nil {
		return nil, fmt.Errorf("mark %s verified: %w", pending.PendingID, err)
	}

	entry, err := w.pool.FindByNumber(ctx, pending.ProxyNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("proxy of %s left the pool: %w", pending.PendingID, domain.ErrTokenMismatch)
		}
		return nil, err
	}
	if entry.Status != domain.PoolStatusReserved || entry.ReservedBy != pending.PendingID {
		w.logger.WarnContext(ctx, "Reservation no longer held by pending confirmation",
			"pending_id", pending.PendingID, "pool_status", entry.Status, "reserved_by", entry.ReservedBy)
		return nil, fmt.Errorf("reservation of %s: %w", pending.PendingID, domain.ErrTokenMismatch)
	}

	contact := domain.Contact{Name: pending.ClientName, Mail: pending.ClientMail, Phone: domain.ToE164(pending.ClientRealPhone)}
	existing, nextID, err := w.clients.Match(ctx, contact.Mail, contact.Phone)
	if err != nil {
		return nil, err
	}
	ownerID := nextID
	if existing != nil {
		ownerID = existing.ID
		if existing.ProxyNumber != "" && !domain.SamePhone(existing.ProxyNumber, entry.PhoneNumber) {
			return nil, fmt.Errorf("client %d already bound to %s: %w",
				existing.ID, logger.MaskPhone(existing.ProxyNumber), domain.ErrProxyImmutable)
		}
	}

	if err := w.pool.Finalize(ctx, entry.Row, entry.ReservationToken, strconv.FormatInt(ownerID, 10), contact.Name); err != nil {
		return nil, err
	}

	status := domain.PendingStatusPromoted
	if existing == nil {
		inserted, err := w.clients.Insert(ctx, domain.Client{
			ID:          ownerID,
			Name:        contact.Name,
			Mail:        contact.Mail,
			RealPhone:   contact.Phone,
			ProxyNumber: entry.PhoneNumber,
		})
		if err != nil {
			return nil, err
		}
		ownerID = inserted.ID
		res.Outcome = domain.OutcomePromoted
	} else {
		changed, err := w.clients.ApplyContact(ctx, *existing, contact, entry.PhoneNumber)
		if err != nil {
			return nil, err
		}
		status = domain.PendingStatusUpdated
		res.Outcome = domain.OutcomeUpdated
		res.UpdatedFields = changed
	}
	res.ClientID = ownerID

	if err := w.pending.Write(ctx, pending.Row,
		repository.Set(repository.PendingUpdatedFields, strings.Join(res.UpdatedFields, ",")),
		repository.Set(repository.PendingStatus, string(status)),
	); err != nil {
		return nil, fmt.Errorf("mark %s %s: %w", pending.PendingID, status, err)
	}

	w.logger.InfoContext(ctx, "Confirmation completed", "pending_id", pending.PendingID,
		"client_id", ownerID, "outcome", res.Outcome, "updated_fields", res.UpdatedFields)
	w.events.publish(ctx, domain.SubjectConfirmationPrefix+strings.ToLower(string(status)), domain.ConfirmationEvent{
		PendingID: pending.PendingID, Status: status, ProxyNumber: entry.PhoneNumber, ClientID: ownerID, OccurredAt: w.now(),
	})
	w.notifyConfirmed(ctx, ownerID, contact, entry.PhoneNumber)
	return res, nil
}

// notifyConfirmed sends the best-effort confirmation SMS and e-mail.
func (w *ConfirmationWorkflow) notifyConfirmed(ctx context.Context, clientID int64, contact domain.Contact, proxy string) {
	body := fmt.Sprintf(confirmedMessageFormat, proxy)
	if err := w.carrier.SendMessage(ctx, proxy, contact.Phone, body); err != nil {
		w.logger.WarnContext(ctx, "Confirmation SMS failed", "error", err, "client_id", clientID)
	}
	if w.notifier == nil || contact.Mail == "" {
		return
	}
	err := w.notifier.Notify(ctx, domain.Notification{
		ClientID:    clientID,
		Name:        contact.Name,
		Mail:        contact.Mail,
		ProxyNumber: proxy,
		Subject:     "Your ProxyCall number is active",
		Body:        body,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "Confirmation e-mail failed", "error", err, "client_id", clientID)
	}
}

// ExpiredPending identifies a confirmation moved to EXPIRED.
type ExpiredPending struct {
	PendingID   string `json:"pending_id"`
	ProxyNumber string `json:"proxy_number"`
}

// ExpireOlderThan marks PENDING rows created more than hours ago as EXPIRED.
// Rows with an unparsable created_at are left alone; rows whose write fails
// are skipped and omitted from the result.
func (w *ConfirmationWorkflow) ExpireOlderThan(ctx context.Context, hours int) ([]ExpiredPending, error) {
	if hours < 0 {
		return nil, domain.NewValidationError("hours", "must be >= 0", strconv.Itoa(hours))
	}
	all, err := w.pending.All(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := w.now().Add(-time.Duration(hours) * time.Hour)

	var expired []ExpiredPending
	for _, p := range all {
		if p.Status != domain.PendingStatusPending {
			continue
		}
		created, ok := domain.ParseTimestamp(p.CreatedAt)
		if !ok || !created.Before(cutoff) {
			continue
		}
		if err := w.pending.Write(ctx, p.Row, repository.Set(repository.PendingStatus, string(domain.PendingStatusExpired))); err != nil {
			w.logger.WarnContext(ctx, "Failed to expire pending confirmation, skipping", "error", err, "pending_id", p.PendingID)
			continue
		}
		expired = append(expired, ExpiredPending{PendingID: p.PendingID, ProxyNumber: p.ProxyNumber})
		expiredPendingCounter.Inc()
		w.events.publish(ctx, domain.SubjectConfirmationPrefix+"expired", domain.ConfirmationEvent{
			PendingID: p.PendingID, Status: domain.PendingStatusExpired, ProxyNumber: p.ProxyNumber, OccurredAt: w.now(),
		})
	}
	if len(expired) > 0 {
		w.logger.InfoContext(ctx, "Pending confirmations expired", "count", len(expired), "hours", hours)
	}
	return expired, nil
}

func (w *ConfirmationWorkflow) releaseQuietly(ctx context.Context, token, pendingID string) {
	if _, err := w.pool.Release(ctx, token); err != nil {
		w.logger.ErrorContext(ctx, "Failed to release reservation", "error", err, "pending_id", pendingID)
	}
}
