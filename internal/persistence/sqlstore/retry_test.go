package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

func fastRetry(max int) *RetryHelper {
	return NewRetryHelper(RetryConfig{MaxRetries: max, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2})
}

func TestRetryHelper_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := fastRetry(3).WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryHelper_StopsOnPermanentErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := fastRetry(3).WithRetry(context.Background(), func() error {
		attempts++
		return persistence.ErrConflict
	})
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestRetryHelper_GivesUp(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := fastRetry(2).WithRetry(context.Background(), func() error {
		attempts++
		return persistence.ErrUnavailable
	})
	if !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", attempts)
	}
}

func TestRetryHelper_HonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	helper := NewRetryHelper(RetryConfig{MaxRetries: 5, InitialDelay: time.Hour})
	err := helper.WithRetry(ctx, func() error {
		cancel()
		return persistence.ErrUnavailable
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
