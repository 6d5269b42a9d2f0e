package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
)

// PoolConfig holds configuration specific to the PoolManager.
type PoolConfig struct {
	MaxReserveAttempts int           `mapstructure:"POOL_MAX_RESERVE_ATTEMPTS"`
	StaleAfter         time.Duration `mapstructure:"POOL_STALE_RESERVATION_AFTER"`
}

// DefaultPoolConfig returns the documented defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxReserveAttempts: 10, StaleAfter: 10 * time.Minute}
}

// PoolManager owns the allocation state machine of pool entries.
type PoolManager struct {
	pool     *repository.PoolTable
	carrier  domain.Carrier
	events   eventPublisher
	logger   *slog.Logger
	cfg      PoolConfig
	now      func() time.Time
	newToken func() string
}

// NewPoolManager creates a PoolManager. carrier and events may be nil when
// replenishment and events are not needed.
func NewPoolManager(pool *repository.PoolTable, carrier domain.Carrier, events domain.EventPublisher, log *slog.Logger, cfg PoolConfig) *PoolManager {
	if cfg.MaxReserveAttempts < 1 {
		cfg.MaxReserveAttempts = DefaultPoolConfig().MaxReserveAttempts
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultPoolConfig().StaleAfter
	}
	log = log.With("component", "pool_manager")
	return &PoolManager{
		pool:     pool,
		carrier:  carrier,
		events:   eventPublisher{pub: events, logger: log},
		logger:   log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: func() string { return uuid.NewString() },
	}
}

// Reserve claims the first reservable entry of country, trying number types
// in order. Each claim is confirmed before it is trusted: with a conditional
// writer the claim is guarded on the token the scan observed, otherwise the
// token is re-read after the write. A lost claim restarts the scan.
func (m *PoolManager) Reserve(ctx context.Context, country string, order domain.FallbackOrder, requesterID string) (*domain.PoolEntry, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(order) == 0 {
		return nil, domain.NewValidationError("number_type", "fallback order is empty", "")
	}
	if strings.TrimSpace(requesterID) == "" {
		return nil, domain.NewValidationError("requester_id", "missing value", "")
	}

	var lastAvailability domain.Availability
	for attempt := 1; attempt <= m.cfg.MaxReserveAttempts; attempt++ {
		entries, err := m.pool.Entries(ctx)
		if err != nil {
			poolReservationsCounter.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("reserve: %w", err)
		}
		now := m.now()
		lastAvailability = availability(entries, country)

		candidate := pickCandidate(entries, country, order, now, m.cfg.StaleAfter)
		if candidate == nil {
			poolReservationsCounter.WithLabelValues("exhausted").Inc()
			m.logger.WarnContext(ctx, "No reservable number", "country", country, "types", order, "available", lastAvailability.String())
			return nil, &domain.PoolExhaustedError{Country: country, Types: order, Available: lastAvailability}
		}

		token := m.newToken()
		reservedAt := domain.FormatTimestamp(now)
		won, err := m.claim(ctx, *candidate, token, reservedAt, requesterID)
		if err != nil {
			poolReservationsCounter.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("reserve row %d: %w", candidate.Row, err)
		}
		if !won {
			poolReservationsCounter.WithLabelValues("lost_race").Inc()
			m.logger.InfoContext(ctx, "Reservation lost to a concurrent writer, rescanning",
				"row", candidate.Row, "attempt", attempt, "requester_id", requesterID)
			continue
		}

		if candidate.Status == domain.PoolStatusReserved {
			m.logger.InfoContext(ctx, "Reclaimed stale reservation", "row", candidate.Row,
				"previous_reserved_by", candidate.ReservedBy, "previous_reserved_at", candidate.ReservedAt)
		}
		reserved := *candidate
		reserved.Status = domain.PoolStatusReserved
		reserved.ReservationToken = token
		reserved.ReservedAt = reservedAt
		reserved.ReservedBy = requesterID

		poolReservationsCounter.WithLabelValues("reserved").Inc()
		poolReservationAttemptsHist.Observe(float64(attempt))
		m.logger.InfoContext(ctx, "Number reserved",
			"row", reserved.Row, "phone_number", logger.MaskPhone(reserved.PhoneNumber),
			"number_type", reserved.NumberType, "requester_id", requesterID, "attempt", attempt)
		return &reserved, nil
	}

	poolReservationsCounter.WithLabelValues("exhausted").Inc()
	return nil, &domain.PoolExhaustedError{
		Country: country, Types: order, Attempts: m.cfg.MaxReserveAttempts, Available: lastAvailability,
	}
}

func (m *PoolManager) claim(ctx context.Context, candidate domain.PoolEntry, token, reservedAt, requesterID string) (bool, error) {
	fields := []repository.Field{
		repository.Set(repository.PoolReservationToken, token),
		repository.Set(repository.PoolReservedAt, reservedAt),
		repository.Set(repository.PoolReservedBy, requesterID),
		repository.Set(repository.PoolStatus, string(domain.PoolStatusReserved)),
	}
	if m.pool.ConditionalWrites() {
		guard := repository.Set(repository.PoolReservationToken, candidate.ReservationToken)
		return m.pool.CompareAndWrite(ctx, candidate.Row, guard, fields...)
	}
	if err := m.pool.Write(ctx, candidate.Row, fields...); err != nil {
		return false, err
	}
	current, err := m.pool.Read(ctx, candidate.Row, repository.PoolReservationToken)
	if err != nil {
		return false, err
	}
	return current == token, nil
}

// Finalize moves a reserved row to assigned when token still owns it. The
// reservation trace columns stay on the row for audit; ownerID is only logged.
func (m *PoolManager) Finalize(ctx context.Context, row int, token, ownerID, attributionName string) error {
	if token == "" {
		return fmt.Errorf("finalize row %d: %w", row, domain.ErrTokenMismatch)
	}
	fields := []repository.Field{
		repository.Set(repository.PoolAssignedAt, domain.FormatTimestamp(m.now())),
		repository.Set(repository.PoolAttributionName, attributionName),
		repository.Set(repository.PoolStatus, string(domain.PoolStatusAssigned)),
	}

	if m.pool.ConditionalWrites() {
		applied, err := m.pool.CompareAndWrite(ctx, row, repository.Set(repository.PoolReservationToken, token), fields...)
		if err != nil {
			return fmt.Errorf("finalize row %d: %w", row, err)
		}
		if !applied {
			m.logger.WarnContext(ctx, "Finalize rejected, token no longer owns row", "row", row, "owner_id", ownerID)
			return fmt.Errorf("finalize row %d: %w", row, domain.ErrTokenMismatch)
		}
	} else {
		current, err := m.pool.Read(ctx, row, repository.PoolReservationToken)
		if err != nil {
			return fmt.Errorf("finalize row %d: %w", row, err)
		}
		if current != token {
			m.logger.WarnContext(ctx, "Finalize rejected, token no longer owns row", "row", row, "owner_id", ownerID)
			return fmt.Errorf("finalize row %d: %w", row, domain.ErrTokenMismatch)
		}
		if err := m.pool.Write(ctx, row, fields...); err != nil {
			return fmt.Errorf("finalize row %d: %w", row, err)
		}
	}

	poolTransitionsCounter.WithLabelValues("finalize").Inc()
	m.logger.InfoContext(ctx, "Number assigned", "row", row, "owner_id", ownerID)
	return nil
}

// Release returns every row reserved under token to available. Unknown
// tokens release nothing.
func (m *PoolManager) Release(ctx context.Context, token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}
	entries, err := m.pool.Entries(ctx)
	if err != nil {
		return 0, fmt.Errorf("release: %w", err)
	}

	released := 0
	for _, e := range entries {
		if e.Status != domain.PoolStatusReserved || e.ReservationToken != token {
			continue
		}
		ok, err := m.releaseRow(ctx, e.Row, token)
		if err != nil {
			return released, fmt.Errorf("release row %d: %w", e.Row, err)
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		poolTransitionsCounter.WithLabelValues("release").Add(float64(released))
		m.logger.InfoContext(ctx, "Reservation released", "rows", released)
	}
	return released, nil
}

func (m *PoolManager) releaseRow(ctx context.Context, row int, token string) (bool, error) {
	fields := []repository.Field{
		repository.Set(repository.PoolReservationToken, ""),
		repository.Set(repository.PoolReservedAt, ""),
		repository.Set(repository.PoolReservedBy, ""),
		repository.Set(repository.PoolAttributionName, ""),
		repository.Set(repository.PoolStatus, string(domain.PoolStatusAvailable)),
	}
	if m.pool.ConditionalWrites() {
		return m.pool.CompareAndWrite(ctx, row, repository.Set(repository.PoolReservationToken, token), fields...)
	}
	if err := m.pool.Write(ctx, row, fields...); err != nil {
		return false, err
	}
	return true, nil
}

// ReplenishResult reports a purchase run. Numbers bought but not persisted
// are listed in Unsaved and must be reconciled by an operator.
type ReplenishResult struct {
	Country    string            `json:"country"`
	NumberType domain.NumberType `json:"number_type"`
	Requested  int               `json:"requested"`
	Added      []string          `json:"added"`
	Unsaved    []string          `json:"unsaved,omitempty"`
	Failures   []string          `json:"failures,omitempty"`
}

// Partial reports whether some but not all requested numbers were added.
func (r ReplenishResult) Partial() bool {
	return len(r.Added) > 0 && len(r.Added) < r.Requested
}

// Replenish buys quantity numbers of one type and appends them as available.
// Failed purchases and numbers already in the pool are reported without
// aborting the run.
func (m *PoolManager) Replenish(ctx context.Context, country string, numberType domain.NumberType, quantity int) (*ReplenishResult, error) {
	if m.carrier == nil {
		return nil, errors.New("replenish: no carrier configured")
	}
	country, err := domain.NormalizeCountryISO("country_iso", country)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be >= 1", fmt.Sprint(quantity))
	}

	res := &ReplenishResult{Country: country, NumberType: numberType, Requested: quantity}
	for i := 0; i < quantity; i++ {
		number, err := m.carrier.PurchaseNumber(ctx, country, numberType)
		if err != nil {
			m.logger.WarnContext(ctx, "Number purchase failed", "error", err, "country", country, "number_type", numberType)
			res.Failures = append(res.Failures, err.Error())
			continue
		}
		number = domain.ToE164(number)
		existing, err := m.FindByNumber(ctx, number)
		switch {
		case err == nil:
			m.logger.WarnContext(ctx, "Purchased number is already in the pool",
				"phone_number", logger.MaskPhone(number), "row", existing.Row, "status", existing.Status)
			res.Failures = append(res.Failures, fmt.Sprintf("%s: already in pool", number))
			continue
		case !errors.Is(err, domain.ErrNotFound):
			m.logger.ErrorContext(ctx, "Purchased number could not be checked against the pool",
				"error", err, "phone_number", number)
			res.Unsaved = append(res.Unsaved, number)
			res.Failures = append(res.Failures, fmt.Sprintf("check %s: %v", number, err))
			continue
		}
		if err := m.carrier.ConfigureWebhooks(ctx, number); err != nil {
			m.logger.WarnContext(ctx, "Webhook configuration failed for purchased number",
				"error", err, "phone_number", logger.MaskPhone(number))
			res.Failures = append(res.Failures, fmt.Sprintf("webhooks %s: %v", number, err))
		}

		now := domain.FormatTimestamp(m.now())
		entry := domain.PoolEntry{
			CountryISO:   country,
			PhoneNumber:  number,
			NumberType:   numberType,
			Status:       domain.PoolStatusAvailable,
			FriendlyName: fmt.Sprintf("ProxyCall %s %s", country, numberType),
			PurchasedAt:  now,
		}
		if err := m.pool.AppendEntry(ctx, entry); err != nil {
			m.logger.ErrorContext(ctx, "Purchased number could not be saved to the pool",
				"error", err, "phone_number", number)
			res.Unsaved = append(res.Unsaved, number)
			res.Failures = append(res.Failures, fmt.Sprintf("save %s: %v", number, err))
			continue
		}
		res.Added = append(res.Added, number)
		poolTransitionsCounter.WithLabelValues("replenish").Inc()
		m.events.publish(ctx, domain.SubjectPoolPrefix+"added", domain.PoolEvent{
			Action: "added", PhoneNumber: number, CountryISO: country, NumberType: numberType, OccurredAt: m.now(),
		})
	}

	m.logger.InfoContext(ctx, "Replenish finished", "country", country, "number_type", numberType,
		"requested", quantity, "added", len(res.Added), "unsaved", len(res.Unsaved), "failures", len(res.Failures))
	if len(res.Added) == 0 {
		if len(res.Unsaved) > 0 {
			return res, &domain.StorageError{Op: "replenish", Err: fmt.Errorf("%d purchased numbers not saved", len(res.Unsaved))}
		}
		return res, &domain.CarrierError{Op: "purchase", Err: errors.New(strings.Join(res.Failures, "; "))}
	}
	return res, nil
}

// Provision fills quantity numbers walking order: whatever one type could
// not supply is requested from the next.
func (m *PoolManager) Provision(ctx context.Context, country string, order domain.FallbackOrder, quantity int) ([]ReplenishResult, error) {
	var results []ReplenishResult
	remaining := quantity
	var lastErr error
	for _, nt := range order {
		if remaining <= 0 {
			break
		}
		res, err := m.Replenish(ctx, country, nt, remaining)
		if res != nil {
			results = append(results, *res)
			remaining -= len(res.Added)
		}
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return results, err
			}
			lastErr = err
		}
	}
	if remaining == quantity && lastErr != nil {
		return results, lastErr
	}
	return results, nil
}

// ListAvailable returns the available entries of country (optionally one
// type) and the per-type breakdown.
func (m *PoolManager) ListAvailable(ctx context.Context, country string, numberType domain.NumberType) ([]domain.PoolEntry, domain.Availability, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	entries, err := m.pool.Entries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list available: %w", err)
	}
	var out []domain.PoolEntry
	for _, e := range entries {
		if e.Status != domain.PoolStatusAvailable || !strings.EqualFold(e.CountryISO, country) {
			continue
		}
		if numberType != "" && e.NumberType != numberType {
			continue
		}
		out = append(out, e)
	}
	return out, availability(entries, country), nil
}

// FindByNumber returns the entry holding phone, compared digit-normalized.
func (m *PoolManager) FindByNumber(ctx context.Context, phone string) (*domain.PoolEntry, error) {
	entries, err := m.pool.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("find number: %w", err)
	}
	for i := range entries {
		if entries[i].Status != domain.PoolStatusPurged && domain.SamePhone(entries[i].PhoneNumber, phone) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("pool number %s: %w", logger.MaskPhone(phone), domain.ErrNotFound)
}

// Remove purges a number from the pool. Purged rows are ignored by every scan.
func (m *PoolManager) Remove(ctx context.Context, phone string) (*domain.PoolEntry, error) {
	entry, err := m.FindByNumber(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := m.pool.Write(ctx, entry.Row,
		repository.Set(repository.PoolReservationToken, ""),
		repository.Set(repository.PoolReservedAt, ""),
		repository.Set(repository.PoolStatus, string(domain.PoolStatusPurged)),
	); err != nil {
		return nil, fmt.Errorf("remove row %d: %w", entry.Row, err)
	}
	poolTransitionsCounter.WithLabelValues("purge").Inc()
	m.logger.InfoContext(ctx, "Number purged", "row", entry.Row, "phone_number", logger.MaskPhone(entry.PhoneNumber),
		"previous_status", entry.Status)
	m.events.publish(ctx, domain.SubjectPoolPrefix+"purged", domain.PoolEvent{
		Action: "purged", PhoneNumber: entry.PhoneNumber, CountryISO: entry.CountryISO,
		NumberType: entry.NumberType, OccurredAt: m.now(),
	})
	entry.Status = domain.PoolStatusPurged
	return entry, nil
}

// RewireFilter selects pool entries for RewireWebhooks. Empty fields match all.
type RewireFilter struct {
	Country string
	Status  domain.PoolStatus
}

// RewireReport lists the numbers touched by RewireWebhooks.
type RewireReport struct {
	DryRun  bool              `json:"dry_run"`
	Matched []string          `json:"matched"`
	Rewired []string          `json:"rewired"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// RewireWebhooks re-applies carrier webhooks to existing pool numbers.
func (m *PoolManager) RewireWebhooks(ctx context.Context, filter RewireFilter, dryRun bool) (*RewireReport, error) {
	if m.carrier == nil {
		return nil, errors.New("rewire: no carrier configured")
	}
	entries, err := m.pool.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("rewire: %w", err)
	}
	report := &RewireReport{DryRun: dryRun, Failed: map[string]string{}}
	for _, e := range entries {
		if e.Status == domain.PoolStatusPurged {
			continue
		}
		if filter.Country != "" && !strings.EqualFold(filter.Country, e.CountryISO) {
			continue
		}
		if filter.Status != "" && filter.Status != e.Status {
			continue
		}
		report.Matched = append(report.Matched, e.PhoneNumber)
		if dryRun {
			continue
		}
		if err := m.carrier.ConfigureWebhooks(ctx, e.PhoneNumber); err != nil {
			m.logger.WarnContext(ctx, "Webhook rewire failed", "error", err, "phone_number", logger.MaskPhone(e.PhoneNumber))
			report.Failed[e.PhoneNumber] = err.Error()
			continue
		}
		report.Rewired = append(report.Rewired, e.PhoneNumber)
	}
	m.logger.InfoContext(ctx, "Webhook rewire finished", "dry_run", dryRun, "matched", len(report.Matched),
		"rewired", len(report.Rewired), "failed", len(report.Failed))
	return report, nil
}

func pickCandidate(entries []domain.PoolEntry, country string, order domain.FallbackOrder, now time.Time, staleAfter time.Duration) *domain.PoolEntry {
	for _, nt := range order {
		for i := range entries {
			if entries[i].Matches(country, nt) && entries[i].Reservable(now, staleAfter) {
				return &entries[i]
			}
		}
	}
	return nil
}

func availability(entries []domain.PoolEntry, country string) domain.Availability {
	a := domain.Availability{}
	for _, e := range entries {
		if e.Status == domain.PoolStatusAvailable && strings.EqualFold(e.CountryISO, country) {
			a[e.NumberType]++
		}
	}
	return a
}
