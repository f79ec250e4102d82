package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/types"
)

// PrunerStore is the log access the pruner needs.
type PrunerStore interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner removes delivery logs older than the retention window. The audit
// trail is append-only from the sweep's perspective; the pruner is the single
// deletion path.
type Pruner struct {
	logs      PrunerStore
	retention time.Duration
	clock     types.Clock
	logger    *slog.Logger
}

// NewPruner creates a Pruner. A zero retention disables pruning: Run becomes
// a no-op.
func NewPruner(logs PrunerStore, retention time.Duration, clock types.Clock, logger *slog.Logger) *Pruner {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{logs: logs, retention: retention, clock: clock, logger: logger}
}

// Run deletes logs older than the retention cutoff and returns the count.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	cutoff := p.clock.Now().Add(-p.retention)
	deleted, err := p.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning delivery logs: %w", err)
	}
	if deleted > 0 {
		p.logger.InfoContext(ctx, "pruned delivery logs",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return deleted, nil
}
