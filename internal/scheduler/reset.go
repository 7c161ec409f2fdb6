package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultResetSchedule resets chances every day at 08:00.
const DefaultResetSchedule = "0 8 * * *"

// ChanceResetter restores every account to the baseline balance.
type ChanceResetter interface {
	Reset(ctx context.Context) (int64, error)
}

// ChanceReset runs the ledger reset on a cron schedule in a fixed zone.
type ChanceReset struct {
	cron     *cron.Cron
	resetter ChanceResetter
	logger   *slog.Logger
	timeout  time.Duration
}

// NewChanceReset registers the reset job. Overlapping runs are skipped so at
// most one reset executes per scheduled tick.
func NewChanceReset(resetter ChanceResetter, schedule string, loc *time.Location, logger *slog.Logger) (*ChanceReset, error) {
	if schedule == "" {
		schedule = DefaultResetSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chance_reset")

	job := &ChanceReset{resetter: resetter, logger: logger, timeout: 30 * time.Second}
	job.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := job.cron.AddFunc(schedule, job.runOnce); err != nil {
		return nil, fmt.Errorf("schedule chance reset %q: %w", schedule, err)
	}
	return job, nil
}

// Run starts the cron scheduler and blocks until ctx is cancelled, then
// waits for a running reset to finish.
func (j *ChanceReset) Run(ctx context.Context) error {
	j.cron.Start()
	for _, entry := range j.cron.Entries() {
		j.logger.InfoContext(ctx, "chance reset scheduled", "next", entry.Next)
	}
	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}

func (j *ChanceReset) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.Trigger(ctx); err != nil {
		j.logger.ErrorContext(ctx, "chance reset failed", "error", err)
	}
}

// Trigger performs one reset immediately.
func (j *ChanceReset) Trigger(ctx context.Context) (int64, error) {
	affected, err := j.resetter.Reset(ctx)
	if err != nil {
		return 0, err
	}
	j.logger.InfoContext(ctx, "chances reset", "accounts", affected)
	return affected, nil
}
