package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type resetterFunc func(ctx context.Context) (int64, error)

func (f resetterFunc) Reset(ctx context.Context) (int64, error) { return f(ctx) }

func TestNewChanceReset_RejectsBadSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewChanceReset(resetterFunc(func(context.Context) (int64, error) { return 0, nil }), "whenever", time.UTC, discardLogger())
	if err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}

func TestChanceReset_Trigger(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	job, err := NewChanceReset(resetterFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 4, nil
	}), "", nil, discardLogger())
	if err != nil {
		t.Fatalf("NewChanceReset returned error: %v", err)
	}

	affected, err := job.Trigger(context.Background())
	if err != nil || affected != 4 {
		t.Fatalf("Trigger = %d, %v; want 4, nil", affected, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one reset, got %d", calls.Load())
	}

	failing, err := NewChanceReset(resetterFunc(func(context.Context) (int64, error) {
		return 0, errors.New("store down")
	}), DefaultResetSchedule, time.UTC, discardLogger())
	if err != nil {
		t.Fatalf("NewChanceReset returned error: %v", err)
	}
	if _, err := failing.Trigger(context.Background()); err == nil {
		t.Fatalf("expected reset error to surface")
	}
}

func TestChanceReset_SchedulesInLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("IST", 5*3600+1800)
	job, err := NewChanceReset(resetterFunc(func(context.Context) (int64, error) { return 0, nil }), DefaultResetSchedule, loc, discardLogger())
	if err != nil {
		t.Fatalf("NewChanceReset returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	var next time.Time
	deadline := time.After(2 * time.Second)
	for next.IsZero() {
		select {
		case <-deadline:
			t.Fatalf("reset was never scheduled")
		case <-time.After(5 * time.Millisecond):
		}
		if entries := job.cron.Entries(); len(entries) == 1 {
			next = entries[0].Next
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	local := next.In(loc)
	if local.Hour() != 8 || local.Minute() != 0 {
		t.Fatalf("expected next reset at 08:00 IST, got %s", local)
	}
}
