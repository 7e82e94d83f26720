// Command whereamid is the location daemon: it resolves the current position
// on a polling interval, keeps a short-TTL cache in front of the providers,
// writes the status file the prompt renderer polls, and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/whereami/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/whereami/internal/adapter/kafka"
	"github.com/couchcryptid/whereami/internal/config"
	"github.com/couchcryptid/whereami/internal/observability"
	"github.com/couchcryptid/whereami/internal/providers"
	"github.com/couchcryptid/whereami/internal/resolver"
	"github.com/couchcryptid/whereami/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// A persisted optimized configuration overrides the static defaults.
	order, hybrid, settings := rankedOrDefault(cfg, logger)
	metrics.HybridEnabled.Set(boolToGauge(hybrid))

	set, err := providers.Build(cfg, order, settings, logger)
	if err != nil {
		logger.Error("failed to assemble providers", "error", err)
		os.Exit(1)
	}
	defer set.Close()

	var publisher resolver.Publisher
	if cfg.TelemetryEnabled {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka telemetry enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	selector := resolver.NewSelector(set.Ordered, hybrid, cfg.MinShortCircuitWeight, logger, metrics)
	cache := resolver.NewCache(cfg.CacheTTL)
	res := resolver.New(selector, cache, logger, metrics, resolver.Options{
		Publisher:  publisher,
		StatusPath: cfg.StatusFile,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, res, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go pollLoop(ctx, cfg, res, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// pollLoop runs one resolution cycle immediately and then once per polling
// interval, each bounded by the cycle deadline.
func pollLoop(ctx context.Context, cfg *config.Config, res *resolver.Resolver, logger *slog.Logger) {
	logger.Info("polling started", "interval", cfg.PollInterval, "cycle_deadline", cfg.CycleDeadline())

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		cycleCtx, cancel := context.WithTimeout(ctx, cfg.CycleDeadline())
		if _, err := res.Resolve(cycleCtx, true, false); err != nil {
			logger.Warn("scheduled resolution failed", "error", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			logger.Info("polling stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// rankedOrDefault loads the optimized provider order and per-provider
// settings from the config store, falling back to the static configuration
// when none has been persisted.
func rankedOrDefault(cfg *config.Config, logger *slog.Logger) ([]string, bool, map[string]map[string]string) {
	if cfg.StorePath == "" {
		return cfg.ProviderOrder, cfg.HybridEnabled, nil
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Warn("opening config store failed, using static order", "path", cfg.StorePath, "error", err)
		return cfg.ProviderOrder, cfg.HybridEnabled, nil
	}
	defer st.Close()

	ranked, err := st.LoadRanked()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("loading ranked config failed, using static order", "error", err)
		}
		return cfg.ProviderOrder, cfg.HybridEnabled, nil
	}

	logger.Info("using optimized provider order",
		"order", ranked.ProviderOrder, "hybrid", ranked.HybridEnabled, "generated_at", ranked.GeneratedAt)
	return ranked.ProviderOrder, ranked.HybridEnabled, ranked.Settings
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
