// Package main is the entry point for the quotesync service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jsamuelsen/quotesync/internal/adapters/http"
	"github.com/jsamuelsen/quotesync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotesync/internal/app"
	"github.com/jsamuelsen/quotesync/internal/bootstrap"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
	"github.com/jsamuelsen/quotesync/internal/platform/telemetry"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := bootstrap.NewLogger(cfg, os.Stdout)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store_backend", cfg.Store.Backend),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics()
	if err != nil {
		return fmt.Errorf("creating sync metrics: %w", err)
	}

	// 5. Store, remote client, synchronizer, health registry
	core, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{Metrics: syncMetrics})
	if err != nil {
		return err
	}

	// 6. Prometheus registry for /-/metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := telemetry.NewStoreGauges(core.Store.Len, core.Sync.PendingCount).Register(registry); err != nil {
		_ = core.Close(ctx)
		return fmt.Errorf("registering store gauges: %w", err)
	}

	// 7. HTTP server and routes
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		ServiceName:   cfg.Telemetry.ServiceName,
		Auth:          &cfg.Auth,
		Timeout:       cfg.Server.RequestTimeout,
		Health:        handlers.NewHealthHandler(core.Health, handlers.NewBuildInfo(Version, Commit, BuildTime), registry),
		Quotes:        handlers.NewQuoteHandler(core.Store),
		Sync:          handlers.NewSyncHandler(core.Sync),
		Notifications: handlers.NewNotificationHandler(core.Notifications),
	})

	serverErr, err := server.Start()
	if err != nil {
		_ = core.Close(ctx)
		return fmt.Errorf("starting server: %w", err)
	}

	// 8. Periodic synchronization
	var scheduler *app.Scheduler
	if cfg.Sync.Enabled {
		scheduler = app.NewScheduler(cfg.Sync.Interval, cfg.Sync.RunOnStart, app.SyncTask(core.Sync), logger)
		scheduler.Start(ctx)
	}

	// 9. Wait for shutdown signal
	return waitForShutdown(logger, server, serverErr, scheduler, core, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until a shutdown signal is received or the server
// fails, then stops the scheduler, drains HTTP and background posts, and
// closes the store.
func waitForShutdown(
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	scheduler *app.Scheduler,
	core *bootstrap.Components,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	if scheduler != nil {
		scheduler.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}

	if err := core.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("closing core: %w", err))
	}

	logger.Info("shutdown complete")

	return runErr
}
