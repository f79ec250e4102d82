// Package main is the entry point for the RollCall sweeper worker.
//
// The sweeper runs the delivery sweep trigger: on every tick it checks
// whether the configured local delivery time has been reached, takes the
// sweep lease (Redis-backed when REDIS_ADDR is set, in-process otherwise),
// and runs one sweep over all active recipients. A metrics server exposes
// Prometheus metrics and a liveness probe.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the trigger stops, the in-flight recipient is given a bounded grace period
// to finish its persistence writes, and the pool is closed.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/config"
	"rollcall/internal/db"
	"rollcall/internal/external"
	"rollcall/internal/metrics"
	"rollcall/internal/sweep"
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
	logger.Info("rollcall sweeper starting",
		"environment", cfg.Environment,
		"tick_interval", cfg.Sweep.TickInterval.String(),
		"delivery_time", cfg.Sweep.DeliveryTime,
		"timezone", cfg.Sweep.Timezone,
	)

	m := metrics.New()
	metrics.SetGlobal(m)

	pool, err := newPool(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	driver := sweep.NewDriver(sweep.DriverConfig{
		Recipients: db.NewRecipientRepository(pool),
		Schedules:  db.NewScheduleRepository(pool),
		Logs:       db.NewDeliveryLogRepository(pool),
		Runs:       db.NewCronRunRepository(pool),
		Gateway:    newGateway(cfg, logger),
		Attendance: newAttendance(cfg, logger),
		Logger:     logger,
		Stagger:    cfg.Sweep.Stagger,
	})

	lease, redisClient, err := newLease(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	trigger, err := sweep.NewTrigger(sweep.TriggerConfig{
		Driver:       driver,
		Lease:        lease,
		Logger:       logger,
		Interval:     cfg.Sweep.TickInterval,
		DeliveryTime: cfg.Sweep.DeliveryTime,
		Timezone:     cfg.Sweep.Timezone,
	})
	if err != nil {
		return fmt.Errorf("creating sweep trigger: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.NewServer(m, ":"+cfg.Server.MetricsPort, "/metrics", logger)

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runPruner(gctx, sweep.NewPruner(
			db.NewDeliveryLogRepository(pool), cfg.Sweep.LogRetention, nil, logger,
		), logger)
		return nil
	})

	trigger.Start()

	<-gctx.Done()
	logger.Info("shutdown signal received")

	// Stop waits for the in-flight tick, bounded by the grace period.
	stopped := make(chan struct{})
	go func() {
		trigger.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Sweep.ShutdownGrace):
		logger.Warn("shutdown grace period elapsed with sweep still in flight")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("sweeper stopped cleanly")
	return nil
}

// runPruner runs the delivery log pruner once at startup and then daily.
func runPruner(ctx context.Context, pruner *sweep.Pruner, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if _, err := pruner.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "delivery log pruning failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
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

// newGateway builds the SMS gateway client, or the logging stub when the
// gateway is not configured (local mode only; Load rejects this elsewhere).
func newGateway(cfg *config.Config, logger *slog.Logger) sweep.Gateway {
	if !cfg.Gateway.Configured() {
		logger.Warn("gateway not configured, using stub client")
		return external.NewStubGateway(logger)
	}
	return external.NewGatewayClient(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		external.GatewayClientConfig{
			APIKey:  cfg.Gateway.APIKey,
			BaseURL: cfg.Gateway.BaseURL,
			Logger:  logger,
		},
	)
}

// newAttendance builds the attendance client, or the empty stub when not
// configured.
func newAttendance(cfg *config.Config, logger *slog.Logger) sweep.AttendanceSource {
	if !cfg.Attendance.Configured() {
		logger.Warn("attendance source not configured, using stub client")
		return external.NewStubAttendance(logger)
	}
	return external.NewAttendanceClient(
		&http.Client{Timeout: cfg.Attendance.Timeout},
		external.AttendanceClientConfig{
			APIKey:  cfg.Attendance.APIKey,
			BaseURL: cfg.Attendance.BaseURL,
			Logger:  logger,
		},
	)
}

// newLease builds the sweep lease: Redis-backed when an address is
// configured, otherwise an in-process mutex suitable for single-instance
// deployments. Returns the Redis client so the caller can close it.
func newLease(cfg *config.Config, logger *slog.Logger) (sweep.Lease, *redis.Client, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, using in-process sweep lease")
		return sweep.NewLocalLease(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}

	return sweep.NewRedisLease(client, cfg.Sweep.LeaseTTL), client, nil
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
