package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// SweeperConfig holds configuration specific to the ExpirySweeper.
type SweeperConfig struct {
	Interval           time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	PendingExpiryHours int           `mapstructure:"PENDING_EXPIRY_HOURS"`
}

// ExpirySweeper expires stale pending confirmations and returns their
// reserved proxies to the pool.
type ExpirySweeper struct {
	confirmation *ConfirmationWorkflow
	pool         *PoolManager
	logger       *slog.Logger
	config       SweeperConfig
}

// NewExpirySweeper creates a new ExpirySweeper instance.
func NewExpirySweeper(confirmation *ConfirmationWorkflow, pool *PoolManager, logger *slog.Logger, cfg SweeperConfig) *ExpirySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PendingExpiryHours <= 0 {
		cfg.PendingExpiryHours = 48
	}
	return &ExpirySweeper{
		confirmation: confirmation,
		pool:         pool,
		logger:       logger.With("component", "expiry_sweeper"),
		config:       cfg,
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Expired  []ExpiredPending `json:"expired"`
	Released int              `json:"released"`
}

// Sweep expires confirmations older than the configured number of hours.
func (s *ExpirySweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	return s.SweepOlderThan(ctx, s.config.PendingExpiryHours)
}

// SweepOlderThan runs ExpireOlderThan and releases the reservation still held
// by each expired confirmation. A failed release is logged and the sweep
// continues.
func (s *ExpirySweeper) SweepOlderThan(ctx context.Context, hours int) (*SweepResult, error) {
	timer := prometheus.NewTimer(sweepDurationHist)
	defer timer.ObserveDuration()

	expired, err := s.confirmation.ExpireOlderThan(ctx, hours)
	if err != nil {
		return nil, fmt.Errorf("expire pending confirmations: %w", err)
	}

	res := &SweepResult{Expired: expired}
	for _, p := range expired {
		if p.ProxyNumber == "" {
			continue
		}
		entry, err := s.pool.FindByNumber(ctx, p.ProxyNumber)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.ErrorContext(ctx, "Failed to look up proxy of expired confirmation", "error", err, "pending_id", p.PendingID)
			}
			continue
		}
		if entry.Status != domain.PoolStatusReserved || entry.ReservedBy != p.PendingID {
			continue
		}
		n, err := s.pool.Release(ctx, entry.ReservationToken)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to release proxy of expired confirmation", "error", err, "pending_id", p.PendingID)
			continue
		}
		res.Released += n
	}
	return res, nil
}

// Run sweeps on every tick until ctx is done. Sweep errors are logged and do
// not stop the loop.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting expiry sweeper", "interval", s.config.Interval, "expiry_hours", s.config.PendingExpiryHours)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Expiry sweep failed", "error", err)
				continue
			}
			if len(res.Expired) > 0 {
				s.logger.InfoContext(ctx, "Expiry sweep completed", "expired", len(res.Expired), "released", res.Released)
			}
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Expiry sweeper stopping", "error", ctx.Err())
			return ctx.Err()
		}
	}
}
