// Package bootstrap assembles the proxycall components from configuration.
// Both binaries share it so the HTTP service and the admin CLI always see the
// same storage and carrier wiring.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tech-Aware/ProxyCall/internal/platform/cache"
	"github.com/Tech-Aware/ProxyCall/internal/platform/config"
	"github.com/Tech-Aware/ProxyCall/internal/platform/database"
	"github.com/Tech-Aware/ProxyCall/internal/platform/messagebroker"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/adapters/carrier"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/adapters/dedup"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/adapters/notifier"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository/memory"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository/postgres"
)

// Options switch off optional collaborators. The admin CLI runs without the
// replay guard.
type Options struct {
	AppName         string
	SkipReplayGuard bool
}

// Service holds the assembled components.
type Service struct {
	Carrier       domain.Carrier
	Pool          *app.PoolManager
	Clients       *app.ClientDirectory
	Confirmations *app.ConfirmationWorkflow
	Routing       *app.RoutingEngine
	Sweeper       *app.ExpirySweeper
	// Guard is nil when REDIS_URL is empty.
	Guard *dedup.RedisGuard

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build connects storage and the optional collaborators and wires the app
// layer. On error everything acquired so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (_ *Service, err error) {
	svc := &Service{}
	defer func() {
		if err != nil {
			svc.Close()
		}
	}()

	poolTable, pendingTable, clientTable, err := svc.openTables(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var events domain.EventPublisher
	if cfg.NATSURL != "" {
		nc, natsErr := messagebroker.NewNATSClient(cfg.NATSURL, log, opts.AppName)
		if natsErr != nil {
			return nil, natsErr
		}
		svc.closers = append(svc.closers, nc.Close)
		events = nc
		log.Info("Event publishing enabled", "nats_url", cfg.NATSURL)
	}

	if cfg.RedisURL != "" && !opts.SkipReplayGuard {
		rdb, redisErr := cache.NewRedisClient(ctx, cfg.RedisURL)
		if redisErr != nil {
			return nil, redisErr
		}
		svc.closers = append(svc.closers, func() { _ = rdb.Close() })
		svc.Guard = dedup.NewRedisGuard(rdb, cfg.ReplayGuardTTL)
		log.Info("Webhook replay guard enabled", "ttl", cfg.ReplayGuardTTL)
	}

	var notifications domain.NotificationSink
	if cfg.SESFromAddress != "" {
		ses, sesErr := notifier.NewSESNotifier(ctx, cfg.SESRegion, cfg.SESFromAddress, log)
		if sesErr != nil {
			return nil, sesErr
		}
		notifications = ses
		log.Info("E-mail notifications enabled", "region", cfg.SESRegion)
	}

	svc.Carrier = newCarrier(cfg, log)

	countries, err := app.LoadCountryCodes(cfg.DialingCodes, cfg.DialingCodesReplace)
	if err != nil {
		return nil, fmt.Errorf("dialing codes: %w", err)
	}
	svc.Pool = app.NewPoolManager(poolTable, svc.Carrier, events, log, app.PoolConfig{
		MaxReserveAttempts: cfg.PoolMaxReserveAttempts,
		StaleAfter:         cfg.PoolStaleReservationAfter,
	})
	svc.Clients = app.NewClientDirectory(clientTable, svc.Pool, countries, log)
	svc.Confirmations = app.NewConfirmationWorkflow(pendingTable, svc.Pool, svc.Clients, svc.Carrier, notifications, events, log,
		app.ConfirmationConfig{OTPLength: cfg.OTPLength})
	svc.Routing = app.NewRoutingEngine(svc.Clients, svc.Confirmations, countries, events, log, app.RoutingConfig{
		CountryPolicy: cfg.RoutingCountryPolicy,
		AllowedCodes:  cfg.RoutingAllowedCodes,
	})
	svc.Sweeper = app.NewExpirySweeper(svc.Confirmations, svc.Pool, log, app.SweeperConfig{
		Interval:           cfg.ExpirySweepInterval,
		PendingExpiryHours: cfg.PendingExpiryHours,
	})
	return svc, nil
}

func (s *Service) openTables(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repository.PoolTable, *repository.PendingTable, *repository.ClientTable, error) {
	var open func(sheet string) domain.RowStore
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("Using in-memory store, data is lost on exit")
		open = func(string) domain.RowStore { return memory.NewRowStore() }
	case "postgres":
		pool, err := database.NewDBPool(ctx, cfg.PostgresDSN, database.PoolOptions{
			MaxConns: cfg.PostgresMaxConns,
			MinConns: cfg.PostgresMinConns,
		}, log)
		if err != nil {
			return nil, nil, nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, nil, err
		}
		open = func(sheet string) domain.RowStore { return postgres.NewPgRowStore(pool, sheet, log) }
	default:
		return nil, nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	poolTable := repository.NewPoolTable(open("pool"))
	pendingTable := repository.NewPendingTable(open("pending_confirmations"))
	clientTable := repository.NewClientTable(open("clients"))
	for _, t := range []*repository.Table{poolTable.Table, pendingTable.Table, clientTable.Table} {
		if err := t.Init(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("init %s table: %w", t.Name(), err)
		}
	}
	return poolTable, pendingTable, clientTable, nil
}

func newCarrier(cfg *config.Config, log *slog.Logger) domain.Carrier {
	if cfg.CarrierAccountSID == "" || cfg.CarrierAuthToken == "" {
		log.Warn("Carrier credentials missing, purchases and outbound SMS are disabled")
		return carrier.NoopCarrier{Logger: log}
	}
	return carrier.NewTwilioCarrier(log, carrier.TwilioConfig{
		AccountSID:    cfg.CarrierAccountSID,
		AuthToken:     cfg.CarrierAuthToken,
		APIBaseURL:    cfg.CarrierAPIBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
	}, &http.Client{Timeout: 10 * time.Second})
}
