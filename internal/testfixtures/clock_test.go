package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	if updated := clock.Advance(30 * time.Second); !updated.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(time.Hour), got)
	}
}

func TestClockAdvancePast(t *testing.T) {
	clock := NewClock(time.Time{})
	deadline := ReferenceTime().Add(30 * time.Second)

	got := clock.AdvancePast(deadline)
	if !got.After(deadline) {
		t.Fatalf("expected clock past %v, got %v", deadline, got)
	}

	before := clock.Now()
	if again := clock.AdvancePast(ReferenceTime()); !again.Equal(before) {
		t.Fatalf("clock moved backwards to %v", again)
	}
}

func TestClockNowFuncFollowsClock(t *testing.T) {
	clock := NewClock(time.Time{})
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected %v from NowFunc, got %v", clock.Now(), got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatalf("nil clock should fall back to time.Now")
	}
}
