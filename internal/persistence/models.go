package persistence

import "time"

// SlotStatus enumerates the lifecycle states of a slot.
type SlotStatus string

const (
	// SlotStatusAvailable is implicit: no live record occupies the window.
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusOnHold    SlotStatus = "on-hold"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusFailed    SlotStatus = "failed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s SlotStatus) Terminal() bool {
	switch s {
	case SlotStatusBooked, SlotStatusFailed, SlotStatusCancelled:
		return true
	}
	return false
}

// InvitationStatus enumerates the states of an invitation.
type InvitationStatus string

const (
	InvitationPending       InvitationStatus = "pending"
	InvitationAccepted      InvitationStatus = "accepted"
	InvitationDeclined      InvitationStatus = "declined"
	InvitationExpired       InvitationStatus = "expired"
	InvitationSlotCancelled InvitationStatus = "slot-cancelled"
)

// Game is read-only reference data describing player bounds.
type Game struct {
	ID         string
	Name       string
	MinPlayers int
	MaxPlayers int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Slot is a held or resolved time window for a game on a given day.
type Slot struct {
	ID             string
	GameID         string
	Day            string
	StartTime      string
	EndTime        string
	Status         SlotStatus
	PeopleAdded    int
	PeopleAccepted int
	HeldBy         string
	IsActive       bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
}

// Invitation tracks one recipient's response to a slot hold.
type Invitation struct {
	ID             string
	SlotID         string
	SenderEmail    string
	RecipientEmail string
	Status         InvitationStatus
	SentAt         time.Time
	RespondedAt    *time.Time
	ExpiresAt      time.Time
	IsActive       bool
}

// Account is a ledger entry holding a user's chances.
type Account struct {
	Email               string
	DisplayName         string
	Chances             int
	LastChanceUpdatedAt time.Time
	CreatedAt           time.Time
}

// SlotFilter narrows slot listings. Zero-valued fields are ignored.
type SlotFilter struct {
	GameID string
	HeldBy string
	// Member matches slots held by the address or carrying an accepted
	// invitation for it.
	Member string
	// Invitee matches slots with any invitation addressed to the address.
	Invitee      string
	Statuses     []SlotStatus
	CreatedSince time.Time
}

// ResolvableCursor positions a ListResolvable page strictly after the last
// slot of the previous page. The zero value starts from the beginning.
type ResolvableCursor struct {
	ExpiresAt time.Time
	SlotID    string
}

// After returns the cursor that follows slot.
func (c ResolvableCursor) After(slot Slot) ResolvableCursor {
	return ResolvableCursor{ExpiresAt: slot.ExpiresAt, SlotID: slot.ID}
}

// InvitationFilter narrows invitation listings. Zero-valued fields are ignored.
type InvitationFilter struct {
	SlotID         string
	RecipientEmail string
	Statuses       []InvitationStatus
	ActiveOnly     bool
	SentSince      time.Time
}

// SlotTransition describes a compare-and-set status change.
type SlotTransition struct {
	SlotID string
	From   SlotStatus
	To     SlotStatus
	// ExpectedAccepted, when set, additionally guards on the accepted headcount.
	ExpectedAccepted *int
	IsActive         bool
	At               time.Time
}

// InvitationUpdate describes a bulk invitation status change. Only active
// invitations are touched unless an explicit invitation id is given.
type InvitationUpdate struct {
	SlotID          string
	InvitationID    string
	RecipientEmails []string
	From            []InvitationStatus
	To              InvitationStatus
	IsActive        bool
	RespondedAt     time.Time
}
