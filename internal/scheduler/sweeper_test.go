package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

type resolverStub struct {
	mu       sync.Mutex
	due      []persistence.Slot
	listErr  error
	outcomes map[string]error
	skip     map[string]bool
	resolved []string
	limit    int
	pages    int
}

// ListResolvable pages through due, which tests keep ordered by expiry then id.
func (r *resolverStub) ListResolvable(_ context.Context, after persistence.ResolvableCursor, limit int) ([]persistence.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	r.pages++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var page []persistence.Slot
	for _, slot := range r.due {
		if len(page) == limit {
			break
		}
		if slot.ExpiresAt.After(after.ExpiresAt) || (slot.ExpiresAt.Equal(after.ExpiresAt) && slot.ID > after.SlotID) {
			page = append(page, slot)
		}
	}
	return page, nil
}

func (r *resolverStub) ResolveSlot(_ context.Context, slotID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, slotID)
	if err := r.outcomes[slotID]; err != nil {
		return false, err
	}
	if r.skip[slotID] {
		return false, nil
	}
	// A resolved slot leaves the due list.
	for i, slot := range r.due {
		if slot.ID == slotID {
			r.due = append(r.due[:i], r.due[i+1:]...)
			break
		}
	}
	return true, nil
}

func (r *resolverStub) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.resolved...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_SweepOnce(t *testing.T) {
	t.Parallel()

	stub := &resolverStub{
		due:      []persistence.Slot{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		outcomes: map[string]error{"b": errors.New("database is locked")},
		skip:     map[string]bool{"c": true},
	}
	sweeper := NewSweeper(stub, time.Second, discardLogger())

	stats := sweeper.SweepOnce(context.Background())
	want := SweepStats{Due: 3, Resolved: 1, Skipped: 1, Failed: 1}
	if stats != want {
		t.Fatalf("SweepOnce = %+v, want %+v", stats, want)
	}
	if stub.limit != defaultBatchSize {
		t.Fatalf("expected batch size %d, got %d", defaultBatchSize, stub.limit)
	}
	if calls := stub.calls(); len(calls) != 3 {
		t.Fatalf("expected a failure not to stop the batch, got %v", calls)
	}

	// The failed slot is retried on the next tick.
	stats = sweeper.SweepOnce(context.Background())
	if stats.Due != 2 || stats.Failed != 1 {
		t.Fatalf("expected failed slot to be retried, got %+v", stats)
	}
}

func TestSweeper_PagesPastFailingSlots(t *testing.T) {
	t.Parallel()

	stub := &resolverStub{
		due: []persistence.Slot{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		outcomes: map[string]error{
			"a": errors.New("load game ghost: not found"),
			"b": errors.New("load game ghost: not found"),
			"c": errors.New("load game ghost: not found"),
		},
	}
	sweeper := NewSweeper(stub, time.Second, discardLogger())
	sweeper.batchSize = 2

	stats := sweeper.SweepOnce(context.Background())
	want := SweepStats{Due: 4, Resolved: 1, Failed: 3}
	if stats != want {
		t.Fatalf("SweepOnce = %+v, want %+v", stats, want)
	}
	calls := stub.calls()
	if len(calls) != 4 || calls[3] != "d" {
		t.Fatalf("expected the healthy slot behind a full page of failures to resolve, got %v", calls)
	}
	if stub.pages != 3 {
		t.Fatalf("expected 3 list calls ending with an empty page, got %d", stub.pages)
	}
}

func TestSweeper_ListFailure(t *testing.T) {
	t.Parallel()

	stub := &resolverStub{listErr: errors.New("unavailable")}
	stats := NewSweeper(stub, time.Second, discardLogger()).SweepOnce(context.Background())
	if stats != (SweepStats{}) {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if len(stub.calls()) != 0 {
		t.Fatalf("expected no resolutions")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	stub := &resolverStub{due: []persistence.Slot{{ID: "a"}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSweeper(stub, 5*time.Millisecond, discardLogger()).Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(stub.calls()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	t.Parallel()

	sweeper := NewSweeper(&resolverStub{}, 0, nil)
	if sweeper.interval != DefaultSweepInterval {
		t.Fatalf("expected default interval, got %s", sweeper.interval)
	}
}
