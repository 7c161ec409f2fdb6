package application

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/persistence"
)

const tracerName = "github.com/example/slotbooking/internal/application"

// Resolver finalises expired holds. Each slot is resolved in its own
// transaction whose first write is a compare-and-set on status = on-hold,
// so repeated or concurrent runs for the same slot change nothing.
type Resolver struct {
	store  persistence.Store
	opts   Options
	tracer trace.Tracer
}

// NewResolver constructs a resolver.
func NewResolver(store persistence.Store, opts Options) *Resolver {
	return &Resolver{store: store, opts: opts.withDefaults(), tracer: otel.Tracer(tracerName)}
}

func (r *Resolver) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.opts.Logger, "Resolver", operation, attrs...)
}

// ListResolvable returns a page of on-hold slots whose hold has expired.
func (r *Resolver) ListResolvable(ctx context.Context, after ResolvableCursor, limit int) ([]Slot, error) {
	return NewSlotRegistry(r.store, r.opts).ListResolvable(ctx, after, limit)
}

// ResolveSlot resolves one slot. It reports false without error when the slot
// is no longer on-hold or its hold has not expired yet. On error nothing is
// committed and the slot stays on-hold for the next sweep.
func (r *Resolver) ResolveSlot(ctx context.Context, slotID string) (resolved bool, err error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.ResolveSlot", trace.WithAttributes(attribute.String("slot.id", slotID)))
	defer span.End()

	logger := r.loggerWith(ctx, "ResolveSlot", "slot_id", slotID)

	var res Resolution
	err = r.store.WithinTx(ctx, func(repos persistence.Repositories) error {
		res, resolved = Resolution{}, false
		reg := bindRegistries(repos, r.opts)

		slot, txErr := reg.slots.Get(ctx, slotID)
		if txErr != nil {
			return txErr
		}
		if slot.Status != persistence.SlotStatusOnHold || holdRemaining(slot, r.opts.Now()) {
			return nil
		}

		game, txErr := reg.game(ctx, slot.GameID)
		if txErr != nil {
			return fmt.Errorf("load game %s: %w", slot.GameID, txErr)
		}

		meets := game.MinPlayers <= slot.PeopleAccepted && slot.PeopleAccepted <= game.MaxPlayers
		outcome := persistence.SlotStatusFailed
		if meets {
			outcome = persistence.SlotStatusBooked
		}

		slot, txErr = reg.slots.finalize(ctx, slot, outcome)
		if txErr != nil {
			return txErr
		}

		invitations, txErr := reg.invitations.BySlot(ctx, slot.ID)
		if txErr != nil {
			return txErr
		}
		accepted := recipientsWith(invitations, persistence.InvitationAccepted, true)

		res = Resolution{Slot: slot, Game: game, Meets: meets}
		if meets {
			pending := recipientsWith(invitations, persistence.InvitationPending, true)
			if len(pending) > 0 {
				res.Expired, txErr = reg.invitations.UpdateStatusBulk(ctx, slot.ID, pending, persistence.InvitationExpired, false)
				if txErr != nil {
					return txErr
				}
			}
		} else {
			res.Expired, txErr = reg.invitations.UpdateStatusBulk(ctx, slot.ID, nil, persistence.InvitationExpired, false)
			if txErr != nil {
				return txErr
			}
			res.Refunded = append(append([]string{}, accepted...), slot.HeldBy)
			if txErr := reg.ledger.Adjust(ctx, res.Refunded, 1); txErr != nil {
				return txErr
			}
		}

		res.Participants = append([]string{slot.HeldBy}, accepted...)
		resolved = true
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		resolved = false
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		logger.ErrorContext(ctx, "failed to resolve slot; will retry", "error", err, "error_kind", ErrorKind(err))
		return
	}
	if !resolved {
		logger.DebugContext(ctx, "slot not resolvable, skipping")
		return
	}

	span.SetAttributes(
		attribute.String("slot.status", string(res.Slot.Status)),
		attribute.Int("slot.people_accepted", res.Slot.PeopleAccepted),
	)
	logger.InfoContext(ctx, "slot resolved",
		"status", res.Slot.Status,
		"people_accepted", res.Slot.PeopleAccepted,
		"invitations_expired", res.Expired,
		"refunded", len(res.Refunded),
	)

	message := resolutionMessage(res)
	for _, participant := range res.Participants {
		r.opts.Notifications.Enqueue(ctx, participant, message)
	}
	r.opts.Events.Publish(ctx, slotEvent(broadcast.TopicSlotExpired, res.Slot))
	return
}
