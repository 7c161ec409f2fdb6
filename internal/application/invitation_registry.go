package application

import (
	"context"
	"fmt"

	"github.com/example/slotbooking/internal/persistence"
)

// InvitationRegistry creates and transitions invitations. It never touches the
// ledger; callers pair status changes with the matching chance adjustments.
type InvitationRegistry struct {
	repos persistence.Repositories
	opts  Options
}

// NewInvitationRegistry constructs a registry over repos.
func NewInvitationRegistry(repos persistence.Repositories, opts Options) *InvitationRegistry {
	return &InvitationRegistry{repos: repos, opts: opts.withDefaults()}
}

// CreateMany issues pending, active invitations for each recipient. Every
// invitation inherits the slot's expiry.
func (r *InvitationRegistry) CreateMany(ctx context.Context, slotID string, recipients []string, sender string) ([]Invitation, error) {
	slot, err := r.repos.Slots().GetSlot(ctx, slotID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if len(recipients) == 0 {
		return []Invitation{}, nil
	}

	now := r.opts.Now()
	invitations := make([]Invitation, 0, len(recipients))
	for _, recipient := range recipients {
		invitations = append(invitations, Invitation{
			ID:             r.opts.InvitationIDs(),
			SlotID:         slot.ID,
			SenderEmail:    sender,
			RecipientEmail: recipient,
			Status:         persistence.InvitationPending,
			SentAt:         now,
			ExpiresAt:      slot.ExpiresAt,
			IsActive:       true,
		})
	}

	if err := r.repos.Invitations().CreateInvitations(ctx, invitations); err != nil {
		return nil, mapStoreError(err)
	}
	return invitations, nil
}

// UpdateStatusBulk sets status, isActive and respondedAt on the slot's active
// invitations for recipients, or for every active invitation when recipients
// is empty. It returns the number of invitations changed.
func (r *InvitationRegistry) UpdateStatusBulk(ctx context.Context, slotID string, recipients []string, to InvitationStatus, isActive bool) (int64, error) {
	if slotID == "" {
		return 0, fmt.Errorf("bulk invitation update: %w", ErrNotFound)
	}
	affected, err := r.repos.Invitations().UpdateInvitations(ctx, persistence.InvitationUpdate{
		SlotID:          slotID,
		RecipientEmails: recipients,
		To:              to,
		IsActive:        isActive,
		RespondedAt:     r.opts.Now(),
	})
	if err != nil {
		return 0, mapStoreError(err)
	}
	return affected, nil
}

// Respond moves a single pending invitation to a response status. A second
// response, or one racing the expiry sweep, fails with ErrInvalidTransition.
func (r *InvitationRegistry) Respond(ctx context.Context, invitationID string, to InvitationStatus, isActive bool) (Invitation, error) {
	now := r.opts.Now()
	affected, err := r.repos.Invitations().UpdateInvitations(ctx, persistence.InvitationUpdate{
		InvitationID: invitationID,
		From:         []InvitationStatus{persistence.InvitationPending},
		To:           to,
		IsActive:     isActive,
		RespondedAt:  now,
	})
	if err != nil {
		return Invitation{}, mapStoreError(err)
	}
	if affected == 0 {
		return Invitation{}, fmt.Errorf("invitation %s is no longer pending: %w", invitationID, ErrInvalidTransition)
	}
	return r.Get(ctx, invitationID)
}

// Get returns an invitation by id.
func (r *InvitationRegistry) Get(ctx context.Context, id string) (Invitation, error) {
	inv, err := r.repos.Invitations().GetInvitation(ctx, id)
	if err != nil {
		return Invitation{}, mapStoreError(err)
	}
	return inv, nil
}

// BySlot returns every invitation issued for the slot.
func (r *InvitationRegistry) BySlot(ctx context.Context, slotID string) ([]Invitation, error) {
	return r.list(ctx, persistence.InvitationFilter{SlotID: slotID})
}

// ActiveBySlot returns the slot's active invitations.
func (r *InvitationRegistry) ActiveBySlot(ctx context.Context, slotID string) ([]Invitation, error) {
	return r.list(ctx, persistence.InvitationFilter{SlotID: slotID, ActiveOnly: true})
}

// ByRecipient returns invitations sent to email today.
func (r *InvitationRegistry) ByRecipient(ctx context.Context, email string) ([]Invitation, error) {
	return r.list(ctx, persistence.InvitationFilter{
		RecipientEmail: email,
		SentSince:      startOfDay(r.opts.Now(), r.opts.Location),
	})
}

// BySlotAndRecipient returns the recipient's invitations for one slot, newest last.
func (r *InvitationRegistry) BySlotAndRecipient(ctx context.Context, slotID, email string) ([]Invitation, error) {
	return r.list(ctx, persistence.InvitationFilter{SlotID: slotID, RecipientEmail: email})
}

func (r *InvitationRegistry) list(ctx context.Context, filter persistence.InvitationFilter) ([]Invitation, error) {
	invitations, err := r.repos.Invitations().ListInvitations(ctx, filter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return invitations, nil
}

func recipientsWith(invitations []Invitation, status InvitationStatus, activeOnly bool) []string {
	out := make([]string, 0, len(invitations))
	for _, inv := range invitations {
		if inv.Status != status || (activeOnly && !inv.IsActive) {
			continue
		}
		out = append(out, inv.RecipientEmail)
	}
	return out
}
