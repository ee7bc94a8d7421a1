// Command scheduler runs the retry-queue dispatcher and its HTTP surface:
// load configuration, recover whatever PENDING work survived the previous
// process, then serve submissions until signalled to stop (§5, §6).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/retryq/internal/auditlog/postgres"
	"github.com/rezkam/retryq/internal/clock"
	"github.com/rezkam/retryq/internal/config"
	"github.com/rezkam/retryq/internal/engine"
	"github.com/rezkam/retryq/internal/httpapi"
	"github.com/rezkam/retryq/internal/objectstore"
	"github.com/rezkam/retryq/internal/objectstore/fs"
	"github.com/rezkam/retryq/internal/objectstore/gcs"
	"github.com/rezkam/retryq/internal/observability"
	"github.com/rezkam/retryq/internal/recovery"
	"github.com/rezkam/retryq/internal/retrypolicy"
	"github.com/rezkam/retryq/internal/sender"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

const serviceName = "retryq-scheduler"

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, serviceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := newShutdownContext(5)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown logger provider", "error", err)
		}
	}()
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, serviceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := newShutdownContext(5)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown tracer provider", "error", err)
		}
	}()

	mp, err := observability.InitMeterProvider(ctx, serviceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := newShutdownContext(5)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown meter provider", "error", err)
		}
	}()

	metrics, err := observability.NewEngineMetrics(mp.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("failed to create engine metrics: %w", err)
	}

	slog.InfoContext(ctx, "starting retryq scheduler", "storage_backend", cfg.StorageBackend)

	gw, closeGateway, err := newGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create object store gateway: %w", err)
	}
	defer closeGateway()

	engineOpts := []engine.Option{engine.WithMetrics(metrics)}

	if cfg.AuditDatabaseURL != "" {
		auditStore, err := postgres.NewStore(ctx, postgres.PoolConfig{DSN: cfg.AuditDatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to create audit trail store: %w", err)
		}
		defer auditStore.Close()
		engineOpts = append(engineOpts, engine.WithAuditSink(auditStore))
		slog.InfoContext(ctx, "audit trail enabled", "url", maskPassword(cfg.AuditDatabaseURL))
	}

	eng := engine.New(gw, retrypolicy.NewDefaultPolicy(), clock.NewReal(), sender.NewDemo(0.7), logger, engineOpts...)

	recoveryResult, err := recovery.Run(ctx, gw, eng, logger, recovery.Config{
		SkipSerializationErrors: cfg.RecoveryAllowSkipMalformed,
	})
	if err != nil {
		return fmt.Errorf("recovery failed, refusing to start: %w", err)
	}
	slog.InfoContext(ctx, "recovery complete",
		"loaded", recoveryResult.Loaded, "discarded", recoveryResult.Discarded, "skipped", recoveryResult.Skipped)

	dispatchErr := make(chan error, 1)
	go func() {
		dispatchErr <- eng.Run(ctx)
	}()

	apiServer := httpapi.NewServer(eng, gw)
	apiServer.MarkDispatcherAlive()

	httpServer := &http.Server{
		Addr:    cfg.APIHost + ":" + cfg.APIPort,
		Handler: httpapi.NewRouter(apiServer),
	}

	httpErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP API listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("serving HTTP API: %w", err)
			return
		}
		httpErr <- nil
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		apiServer.MarkDispatcherStopped()

		shutdownCtx, cancel := newShutdownContext(30)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown timed out, forcing close", "error", err)
			httpServer.Close()
		}

		if err := eng.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "engine shutdown did not complete cleanly", "error", err)
			return err
		}
		slog.InfoContext(shutdownCtx, "engine shutdown complete")
		return nil

	case err := <-dispatchErr:
		apiServer.MarkDispatcherStopped()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dispatch loop exited unexpectedly: %w", err)
		}
		return nil

	case err := <-httpErr:
		if err != nil {
			return err
		}
		return nil
	}
}

// newGateway constructs the configured object store backend and a close
// function (§6 storage_backend). For both backends the close function does
// nothing; the GCS client is not closed.
func newGateway(ctx context.Context, cfg *config.Config) (objectstore.Gateway, func(), error) {
	prefixes := objectstore.Prefixes{
		Active:  cfg.ActivePrefix,
		Success: cfg.SuccessPrefix,
		Failed:  cfg.FailedPrefix,
	}

	switch cfg.StorageBackend {
	case "fs":
		store, err := fs.New(cfg.FSBaseDir, prefixes)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case "gcs":
		if cfg.EndpointURL != "" {
			store, err := gcs.New(ctx, cfg.Bucket, prefixes, gcs.WithEndpoint(cfg.EndpointURL))
			if err != nil {
				return nil, nil, err
			}
			return store, func() {}, nil
		}
		store, err := gcs.New(ctx, cfg.Bucket, prefixes)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newShutdownContext creates a fresh context with a timeout for a graceful
// shutdown step, independent of the (already cancelled) root context.
func newShutdownContext(timeoutSeconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}

// maskPassword redacts the password component of a DSN before it is logged.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
