// Package main is the entry point for the RollCall admin API server.
//
// It loads configuration, connects the database pool, wires the repositories
// into the HTTP handlers, and serves the versioned admin API with graceful
// shutdown on SIGINT/SIGTERM. A separate metrics server exposes Prometheus
// metrics and a liveness probe.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/api/handlers"
	"rollcall/internal/config"
	"rollcall/internal/core"
	"rollcall/internal/db"
	"rollcall/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("rollcall API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	m := metrics.New()
	metrics.SetGlobal(m)

	pool, err := newPool(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	recipientRepo := db.NewRecipientRepository(pool)
	scheduleRepo := db.NewScheduleRepository(pool)
	logRepo := db.NewDeliveryLogRepository(pool)
	runRepo := db.NewCronRunRepository(pool)

	srv := core.NewServer(cfg, pool, logger)

	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, srv.Validator, logger)
	recipientHandler := handlers.NewRecipientHandler(recipientRepo, scheduleRepo, srv.Validator, logger, nil)
	historyHandler := handlers.NewHistoryHandler(logRepo, runRepo)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { scheduleHandler.RegisterRoutes(r) },
		func(r chi.Router) { recipientHandler.RegisterRoutes(r) },
		func(r chi.Router) { historyHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	metricsSrv := metrics.NewServer(m, ":"+cfg.Server.MetricsPort, "/metrics", logger)

	return runHTTPServer(srv, metricsSrv, cfg, logger)
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// runHTTPServer serves the API and metrics endpoints with graceful shutdown
// on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, metricsSrv *metrics.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	<-gctx.Done()

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
