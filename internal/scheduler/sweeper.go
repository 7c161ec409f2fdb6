// Package scheduler runs the time-driven parts of the service: the expiry
// sweep that resolves lapsed holds and the daily chance reset.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/slotbooking/internal/persistence"
)

const (
	DefaultSweepInterval = time.Second
	defaultBatchSize     = 100
)

// SlotResolver lists and resolves expired holds.
type SlotResolver interface {
	ListResolvable(ctx context.Context, after persistence.ResolvableCursor, limit int) ([]persistence.Slot, error)
	ResolveSlot(ctx context.Context, slotID string) (bool, error)
}

// SweepStats summarises one tick.
type SweepStats struct {
	Due      int
	Resolved int
	Skipped  int
	Failed   int
}

// Sweeper periodically resolves expired holds.
type Sweeper struct {
	resolver  SlotResolver
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSweeper constructs a sweeper ticking every interval.
func NewSweeper(resolver SlotResolver, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		resolver:  resolver,
		interval:  interval,
		batchSize: defaultBatchSize,
		logger:    logger.With("component", "sweeper"),
		tracer:    otel.Tracer("github.com/example/slotbooking/internal/scheduler"),
	}
}

// Run sweeps on every tick until ctx is cancelled. Ticks never overlap: a
// slow sweep delays the next one.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce resolves every hold that is due. A failure on one slot is
// logged and does not stop the others; the slot is retried next tick. Due
// holds are walked page by page past the last slot seen, so slots that keep
// failing never hide the ones behind them.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepStats {
	ctx, span := s.tracer.Start(ctx, "Sweeper.SweepOnce")
	defer span.End()

	var (
		stats  SweepStats
		cursor persistence.ResolvableCursor
	)
	for ctx.Err() == nil {
		due, err := s.resolver.ListResolvable(ctx, cursor, s.batchSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "failed to list expired holds", "error", err)
			}
			span.RecordError(err)
			break
		}
		stats.Due += len(due)

		for _, slot := range due {
			if ctx.Err() != nil {
				break
			}
			cursor = cursor.After(slot)
			resolved, err := s.resolver.ResolveSlot(ctx, slot.ID)
			switch {
			case err != nil:
				stats.Failed++
				s.logger.WarnContext(ctx, "slot resolution failed", "slot_id", slot.ID, "game_id", slot.GameID, "error", err)
			case resolved:
				stats.Resolved++
			default:
				stats.Skipped++
			}
		}
		if len(due) < s.batchSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.due", stats.Due),
		attribute.Int("sweep.resolved", stats.Resolved),
		attribute.Int("sweep.failed", stats.Failed),
	)
	if stats.Due > 0 {
		s.logger.DebugContext(ctx, "sweep finished", "due", stats.Due, "resolved", stats.Resolved, "skipped", stats.Skipped, "failed", stats.Failed)
	}
	return stats
}
