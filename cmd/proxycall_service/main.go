package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Tech-Aware/ProxyCall/internal/platform/config"
	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/bootstrap"
	httptransport "github.com/Tech-Aware/ProxyCall/internal/proxy_service/transport/http"
)

const (
	serviceName     = "proxycall-service"
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel).With("service", serviceName)
	log.Info("Starting service...", "store_backend", cfg.StoreBackend)

	startCtx, startCancel := context.WithTimeout(mainCtx, startupTimeout)
	svc, err := bootstrap.Build(startCtx, cfg, log, bootstrap.Options{AppName: serviceName})
	startCancel()
	if err != nil {
		log.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	var guard httptransport.ReplayGuard
	if svc.Guard != nil {
		guard = svc.Guard
	}
	validate := validator.New()
	router := httptransport.NewRouter(httptransport.Handlers{
		Webhooks:      httptransport.NewWebhookHandler(svc.Routing, svc.Carrier, guard, log, cfg.VoiceLanguage),
		Confirmations: httptransport.NewConfirmationHandler(svc.Confirmations, svc.Sweeper, log, validate),
		Pool:          httptransport.NewPoolHandler(svc.Pool, log, validate),
		Clients:       httptransport.NewClientHandler(svc.Clients, log, validate),
	}, requestTimeout)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Starting HTTP server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			return err
		}
		log.Info("HTTP server stopped")
		return nil
	})

	g.Go(func() error {
		log.Info("Starting metrics server...", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := svc.Sweeper.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-groupCtx.Done()
		log.Info("Initiating HTTP server graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics server shutdown failed", "error", err)
		}
		return nil
	})

	log.Info("Service is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		log.Error("A component failed, initiating shutdown", "error", context.Cause(groupCtx))
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Error during shutdown", "error", err)
		svc.Close()
		os.Exit(1)
	}
	log.Info("Service shutdown complete")
}
