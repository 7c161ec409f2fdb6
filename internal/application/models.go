package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/persistence"
)

type (
	Slot             = persistence.Slot
	SlotStatus       = persistence.SlotStatus
	Invitation       = persistence.Invitation
	InvitationStatus = persistence.InvitationStatus
	Account          = persistence.Account
	Game             = persistence.Game
	ResolvableCursor = persistence.ResolvableCursor
)

const (
	DefaultHoldTTL        = 30 * time.Second
	DefaultChanceBaseline = 3
)

// Principal identifies the authenticated caller.
type Principal struct {
	Email       string
	DisplayName string
}

// HoldSlotParams requests a new hold on a window.
type HoldSlotParams struct {
	Principal Principal
	// SlotID is optional; a new id is minted when empty.
	SlotID    string
	GameID    string
	StartTime string
	EndTime   string
	Invitees  []string
}

// EditHoldParams replaces the invitee list of an on-hold slot.
type EditHoldParams struct {
	Principal Principal
	SlotID    string
	Invitees  []string
}

// CancelSlotParams cancels an on-hold slot.
type CancelSlotParams struct {
	Principal Principal
	SlotID    string
}

// RespondParams accepts or declines an invitation.
type RespondParams struct {
	Principal    Principal
	InvitationID string
	Accept       bool
}

// SlotView selects one of the day-scoped slot listings.
type SlotView string

const (
	SlotViewActive  SlotView = "active"
	SlotViewExpired SlotView = "expired"
	SlotViewMine    SlotView = "mine"
	SlotViewInvited SlotView = "invited"
)

// ListSlotsParams selects slots for a view.
type ListSlotsParams struct {
	Principal Principal
	GameID    string
	View      SlotView
}

// HoldResult is returned by hold and edit operations.
type HoldResult struct {
	Slot        Slot
	Invitations []Invitation
}

// ResponseResult is returned after an invitation response.
type ResponseResult struct {
	Invitation Invitation
	Slot       Slot
}

// Resolution describes the outcome of resolving one expired hold.
type Resolution struct {
	Slot         Slot
	Game         Game
	Meets        bool
	Participants []string
	Refunded     []string
	Expired      int64
}

// EventPublisher receives slot lifecycle events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, event broadcast.Event)
}

// NotificationQueue accepts best-effort messages. Implementations must not block.
type NotificationQueue interface {
	Enqueue(ctx context.Context, recipient, message string)
}

// Options carries the collaborators shared by the registries, the booking
// service, and the resolver.
type Options struct {
	HoldTTL        time.Duration
	ChanceBaseline int
	Location       *time.Location
	Now            func() time.Time
	SlotIDs        func() string
	InvitationIDs  func() string
	Events         EventPublisher
	Notifications  NotificationQueue
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HoldTTL <= 0 {
		o.HoldTTL = DefaultHoldTTL
	}
	if o.ChanceBaseline <= 0 {
		o.ChanceBaseline = DefaultChanceBaseline
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.SlotIDs == nil {
		o.SlotIDs = uuid.NewString
	}
	if o.InvitationIDs == nil {
		o.InvitationIDs = newInvitationID
	}
	if o.Events == nil {
		o.Events = discardEvents{}
	}
	if o.Notifications == nil {
		o.Notifications = discardNotifications{}
	}
	o.Logger = defaultLogger(o.Logger)
	return o
}

func newInvitationID() string {
	id, err := gonanoid.New()
	if err != nil {
		return uuid.NewString()
	}
	return id
}

type discardEvents struct{}

func (discardEvents) Publish(context.Context, broadcast.Event) {}

type discardNotifications struct{}

func (discardNotifications) Enqueue(context.Context, string, string) {}
