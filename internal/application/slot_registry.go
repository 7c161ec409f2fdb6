package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/slotbooking/internal/persistence"
	"github.com/example/slotbooking/internal/scheduler"
)

// SlotRegistry creates, reads, and transitions slot records. Caller-facing
// reads only see slots created on the current day in the configured zone.
type SlotRegistry struct {
	repos persistence.Repositories
	opts  Options
}

// NewSlotRegistry constructs a registry over repos. Pass a transaction-bound
// persistence.Repositories to make its operations part of that transaction.
func NewSlotRegistry(repos persistence.Repositories, opts Options) *SlotRegistry {
	return &SlotRegistry{repos: repos, opts: opts.withDefaults()}
}

// Create persists a new on-hold slot. It fails with ErrConflict when a live
// slot already occupies the window for the day.
func (r *SlotRegistry) Create(ctx context.Context, slot Slot) (Slot, error) {
	if slot.Status == "" {
		slot.Status = persistence.SlotStatusOnHold
	}
	if !CanTransition(persistence.SlotStatusAvailable, slot.Status) {
		return Slot{}, fmt.Errorf("create slot in %s: %w", slot.Status, ErrInvalidTransition)
	}
	if vErr := validateWindow(slot.GameID, slot.StartTime, slot.EndTime); vErr.HasErrors() {
		return Slot{}, vErr
	}

	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = r.opts.Now()
	}
	if slot.UpdatedAt.IsZero() {
		slot.UpdatedAt = slot.CreatedAt
	}
	if slot.ExpiresAt.IsZero() {
		slot.ExpiresAt = slot.CreatedAt.Add(r.opts.HoldTTL)
	}
	if slot.PeopleAccepted == 0 {
		slot.PeopleAccepted = 1
	}
	slot.Day = dayKey(slot.CreatedAt, r.opts.Location)
	slot.IsActive = true

	if err := r.repos.Slots().CreateSlot(ctx, slot); err != nil {
		return Slot{}, mapStoreError(err)
	}
	return slot, nil
}

// Get returns a slot by id regardless of the day it was created.
func (r *SlotRegistry) Get(ctx context.Context, id string) (Slot, error) {
	slot, err := r.repos.Slots().GetSlot(ctx, id)
	if err != nil {
		return Slot{}, mapStoreError(err)
	}
	return slot, nil
}

// FindByGameID returns today's slots for a game, optionally narrowed by status.
func (r *SlotRegistry) FindByGameID(ctx context.Context, gameID string, statuses ...SlotStatus) ([]Slot, error) {
	return r.find(ctx, persistence.SlotFilter{GameID: gameID, Statuses: statuses})
}

// FindByHolder returns today's slots held by email.
func (r *SlotRegistry) FindByHolder(ctx context.Context, email string) ([]Slot, error) {
	return r.find(ctx, persistence.SlotFilter{HeldBy: email})
}

// FindByParticipant returns today's slots email holds or has accepted.
func (r *SlotRegistry) FindByParticipant(ctx context.Context, email string) ([]Slot, error) {
	return r.find(ctx, persistence.SlotFilter{Member: email})
}

// FindByInvitee returns today's slots email was invited to.
func (r *SlotRegistry) FindByInvitee(ctx context.Context, email string) ([]Slot, error) {
	return r.find(ctx, persistence.SlotFilter{Invitee: email})
}

func (r *SlotRegistry) find(ctx context.Context, filter persistence.SlotFilter) ([]Slot, error) {
	filter.CreatedSince = startOfDay(r.opts.Now(), r.opts.Location)
	slots, err := r.repos.Slots().ListSlots(ctx, filter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return slots, nil
}

// ListResolvable returns a page of on-hold slots whose hold has run out,
// starting after the cursor. It is not day scoped so holds that straddle
// midnight still resolve.
func (r *SlotRegistry) ListResolvable(ctx context.Context, after ResolvableCursor, limit int) ([]Slot, error) {
	slots, err := r.repos.Slots().ListResolvable(ctx, r.opts.Now(), after, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return slots, nil
}

// UpdatePeopleAdded records the invitee count. Valid only while on-hold.
func (r *SlotRegistry) UpdatePeopleAdded(ctx context.Context, id string, count int) error {
	if count < 0 {
		return fmt.Errorf("people added %d: %w", count, ErrInvalidTransition)
	}
	return mapStoreError(r.repos.Slots().UpdatePeopleAdded(ctx, id, count, r.opts.Now()))
}

// AddAccepted adjusts the accepted headcount. Valid only while on-hold.
func (r *SlotRegistry) AddAccepted(ctx context.Context, id string, delta int) error {
	return mapStoreError(r.repos.Slots().AddPeopleAccepted(ctx, id, delta, r.opts.Now()))
}

// UpdateStatus moves a slot to a new status. The change is a compare-and-set
// against the status read here, so a concurrent transition surfaces as
// ErrInvalidTransition rather than being overwritten.
func (r *SlotRegistry) UpdateStatus(ctx context.Context, id string, to SlotStatus, isActive bool) (Slot, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return Slot{}, err
	}
	if !CanTransition(current.Status, to) {
		return Slot{}, fmt.Errorf("slot %s %s -> %s: %w", id, current.Status, to, ErrInvalidTransition)
	}

	now := r.opts.Now()
	if err := r.repos.Slots().TransitionStatus(ctx, persistence.SlotTransition{
		SlotID:   id,
		From:     current.Status,
		To:       to,
		IsActive: isActive,
		At:       now,
	}); err != nil {
		return Slot{}, mapStoreError(err)
	}

	current.Status = to
	current.IsActive = isActive
	current.UpdatedAt = now
	return current, nil
}

// finalize flips an expired hold to booked or failed, guarded on both the
// status and the headcount the outcome was computed from.
func (r *SlotRegistry) finalize(ctx context.Context, slot Slot, to SlotStatus) (Slot, error) {
	if !CanTransition(slot.Status, to) || !to.Terminal() {
		return Slot{}, fmt.Errorf("slot %s %s -> %s: %w", slot.ID, slot.Status, to, ErrInvalidTransition)
	}
	accepted := slot.PeopleAccepted
	now := r.opts.Now()
	if err := r.repos.Slots().TransitionStatus(ctx, persistence.SlotTransition{
		SlotID:           slot.ID,
		From:             persistence.SlotStatusOnHold,
		To:               to,
		ExpectedAccepted: &accepted,
		IsActive:         to == persistence.SlotStatusBooked,
		At:               now,
	}); err != nil {
		return Slot{}, mapStoreError(err)
	}
	slot.Status = to
	slot.IsActive = to == persistence.SlotStatusBooked
	slot.UpdatedAt = now
	return slot, nil
}

func validateWindow(gameID, start, end string) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(gameID) == "" {
		vErr.add("gameId", "game is required")
	}
	startOffset, startErr := scheduler.ParseClock(start)
	if startErr != nil {
		vErr.add("startTime", "start time must use HH:MM")
	}
	endOffset, endErr := scheduler.ParseClock(end)
	if endErr != nil {
		vErr.add("endTime", "end time must use HH:MM")
	}
	if startErr == nil && endErr == nil && endOffset <= startOffset {
		vErr.add("endTime", "end time must be after start time")
	}
	return vErr
}

func holdRemaining(slot Slot, now time.Time) bool {
	return now.Before(slot.ExpiresAt)
}
