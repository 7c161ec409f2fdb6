package persistence

import (
	"context"
	"time"
)

// GameRepository exposes the game catalog.
type GameRepository interface {
	UpsertGame(ctx context.Context, game Game) error
	GetGame(ctx context.Context, id string) (Game, error)
	ListGames(ctx context.Context) ([]Game, error)
}

// SlotRepository persists slot records.
type SlotRepository interface {
	// CreateSlot returns ErrConflict when a live slot already holds the window
	// and ErrDuplicate when the id is taken.
	CreateSlot(ctx context.Context, slot Slot) error
	GetSlot(ctx context.Context, id string) (Slot, error)
	ListSlots(ctx context.Context, filter SlotFilter) ([]Slot, error)
	// ListResolvable returns on-hold slots whose hold expired at or before
	// now, ordered by expiry then id and starting after the cursor.
	ListResolvable(ctx context.Context, now time.Time, after ResolvableCursor, limit int) ([]Slot, error)
	// UpdatePeopleAdded and AddPeopleAccepted return ErrStale unless the slot is on-hold.
	UpdatePeopleAdded(ctx context.Context, id string, count int, at time.Time) error
	AddPeopleAccepted(ctx context.Context, id string, delta int, at time.Time) error
	// TransitionStatus returns ErrStale when the guard no longer matches.
	TransitionStatus(ctx context.Context, transition SlotTransition) error
}

// InvitationRepository persists invitations.
type InvitationRepository interface {
	CreateInvitations(ctx context.Context, invitations []Invitation) error
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	ListInvitations(ctx context.Context, filter InvitationFilter) ([]Invitation, error)
	UpdateInvitations(ctx context.Context, update InvitationUpdate) (int64, error)
}

// AccountRepository persists ledger accounts.
type AccountRepository interface {
	// EnsureAccount inserts the account when absent and returns the stored row.
	EnsureAccount(ctx context.Context, account Account) (Account, error)
	GetAccount(ctx context.Context, email string) (Account, error)
	// AdjustChances applies delta to every listed account in one statement.
	// A negative delta changes nothing and returns ErrInsufficient when any
	// balance would drop below zero.
	AdjustChances(ctx context.Context, emails []string, delta int, at time.Time) (int64, error)
	ResetChances(ctx context.Context, baseline int, at time.Time) (int64, error)
}

// Repositories groups the repositories that share one connection or transaction.
type Repositories interface {
	Games() GameRepository
	Slots() SlotRepository
	Invitations() InvitationRepository
	Accounts() AccountRepository
}

// Store is the transactional store backing the service.
type Store interface {
	Repositories
	// WithinTx runs fn against repositories bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
}
