package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "BookingService", "HoldSlot", "slot_id", "slot-1").Info("held")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %s", base.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(scoped.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	for key, want := range map[string]string{"service": "BookingService", "operation": "HoldSlot", "slot_id": "slot-1"} {
		if entry[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, entry[key])
		}
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	opts := Options{}.withDefaults()
	if opts.HoldTTL != DefaultHoldTTL || opts.ChanceBaseline != DefaultChanceBaseline {
		t.Fatalf("unexpected defaults: ttl=%s baseline=%d", opts.HoldTTL, opts.ChanceBaseline)
	}
	if opts.Location != time.UTC {
		t.Fatalf("expected UTC location, got %s", opts.Location)
	}
	if opts.SlotIDs() == opts.SlotIDs() {
		t.Fatalf("expected fresh slot ids")
	}
	if id := opts.InvitationIDs(); len(id) != 21 {
		t.Fatalf("expected a 21 character invitation id, got %q", id)
	}
	// Discarding collaborators must be safe to call.
	opts.Events.Publish(context.Background(), slotEvent("slot.created", Slot{ID: "x"}))
	opts.Notifications.Enqueue(context.Background(), "a@example.com", "hi")
}
