package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rollcall/internal/types"
)

// Trigger drives the sweep Driver on a timer. Every tick it checks whether
// the configured local delivery time has been reached for the current day,
// acquires the sweep lease, and runs one sweep. With an empty delivery time
// it sweeps on every tick; deployments relying on per-schedule anchors run
// in this mode and let the driver gate each recipient.
type Trigger struct {
	driver   *Driver
	lease    Lease
	clock    types.Clock
	logger   *slog.Logger
	interval time.Duration

	anchorHour   int
	anchorMinute int
	anchored     bool
	location     *time.Location

	running atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastSwept time.Time
	hasSwept  bool
}

// TriggerConfig configures a Trigger.
type TriggerConfig struct {
	Driver   *Driver
	Lease    Lease
	Clock    types.Clock
	Logger   *slog.Logger
	Interval time.Duration
	// DeliveryTime is the "HH:MM" local time-of-day anchor. Empty means
	// sweep on every tick.
	DeliveryTime string
	// Timezone resolves the local day for the anchor check.
	Timezone string
}

// NewTrigger creates a Trigger. The delivery time and timezone are validated
// here so a misconfigured sweeper fails at startup, not at 07:00.
func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	if cfg.Driver == nil {
		return nil, errors.New("driver must not be nil")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lease := cfg.Lease
	if lease == nil {
		lease = NewLocalLease()
	}

	t := &Trigger{
		driver:   cfg.Driver,
		lease:    lease,
		clock:    clock,
		logger:   logger,
		interval: cfg.Interval,
		location: time.UTC,
		done:     make(chan struct{}),
	}

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		t.location = loc
	}
	if cfg.DeliveryTime != "" {
		hour, minute, err := parseTimeOfDay(cfg.DeliveryTime)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery time: %w", err)
		}
		t.anchorHour, t.anchorMinute = hour, minute
		t.anchored = true
	}

	return t, nil
}

// Start launches the tick loop. Returns false if already running.
func (t *Trigger) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running.Store(true)

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.logger.Info("sweep trigger started",
			"interval", t.interval.String(),
			"anchored", t.anchored,
		)

		t.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				t.logger.Info("sweep trigger stopping")
				return
			case <-ticker.C:
				t.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for the in-flight tick to finish. Returns
// false if not running.
func (t *Trigger) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Load() {
		return false
	}

	t.cancel()
	<-t.done
	t.running.Store(false)

	t.logger.Info("sweep trigger stopped")
	return true
}

// IsRunning reports whether the tick loop is active.
func (t *Trigger) IsRunning() bool {
	return t.running.Load()
}

func (t *Trigger) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("sweep tick panic recovered", "panic", r)
		}
	}()
	t.tick(ctx)
}

func (t *Trigger) tick(ctx context.Context) {
	now := t.clock.Now()
	if !t.shouldSweep(now) {
		return
	}

	acquired, err := t.lease.Acquire(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "sweep lease acquisition failed", "error", err)
		return
	}
	if !acquired {
		t.logger.InfoContext(ctx, "sweep lease held elsewhere, skipping tick")
		return
	}
	defer func() {
		if err := t.lease.Release(ctx); err != nil {
			t.logger.WarnContext(ctx, "sweep lease release failed", "error", err)
		}
	}()

	t.markSwept(now)
	if _, err := t.driver.Run(ctx); err != nil {
		t.logger.ErrorContext(ctx, "sweep run failed", "error", err)
	}
}

// shouldSweep decides whether a sweep is owed at `now`. Without an anchor
// every tick sweeps. With an anchor, a sweep is owed once per local day,
// from the anchor time onward. The same-day check uses the local calendar
// date so DST shifts never double- or zero-trigger a day.
func (t *Trigger) shouldSweep(now time.Time) bool {
	if !t.anchored {
		return true
	}

	local := now.In(t.location)
	anchor := time.Date(local.Year(), local.Month(), local.Day(),
		t.anchorHour, t.anchorMinute, 0, 0, t.location)
	if local.Before(anchor) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasSwept {
		last := t.lastSwept.In(t.location)
		if last.Year() == local.Year() && last.YearDay() == local.YearDay() {
			return false
		}
	}
	return true
}

func (t *Trigger) markSwept(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSwept = now
	t.hasSwept = true
}

// parseTimeOfDay parses a "HH:MM" string into hour and minute components.
// The input must be exactly HH:MM; trailing content is rejected.
func parseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	var hour, minute int
	n, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}
