package testfixtures

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/application"
	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/persistence/sqlstore"
)

// Notification is one message captured by a Recorder.
type Notification struct {
	Recipient string
	Message   string
}

// Recorder captures published events and queued notifications.
type Recorder struct {
	mu            sync.Mutex
	events        []broadcast.Event
	notifications []Notification
}

// Publish implements application.EventPublisher.
func (r *Recorder) Publish(_ context.Context, event broadcast.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Enqueue implements application.NotificationQueue.
func (r *Recorder) Enqueue(_ context.Context, recipient, message string) {
	r.mu.Lock()
	r.notifications = append(r.notifications, Notification{Recipient: recipient, Message: message})
	r.mu.Unlock()
}

// Events returns the events recorded so far, optionally limited to topic.
func (r *Recorder) Events(topic string) []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broadcast.Event, 0, len(r.events))
	for _, event := range r.events {
		if topic == "" || event.Topic == topic {
			out = append(out, event)
		}
	}
	return out
}

// NotificationsFor returns the messages queued for recipient.
func (r *Recorder) NotificationsFor(recipient string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.Recipient == recipient {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.notifications = nil
	r.mu.Unlock()
}

// Services bundles a migrated store with the booking service and resolver,
// all driven by the same fake clock and deterministic id generators.
type Services struct {
	Store    *sqlstore.Store
	Clock    *Clock
	Slots    *IDGenerator
	Recorder *Recorder
	Options  application.Options
	Booking  *application.BookingService
	Resolver *application.Resolver
	Ledger   *application.Ledger
}

// ServicesOption adjusts the options before the services are built.
type ServicesOption func(*application.Options)

// WithHoldTTL overrides the hold duration.
func WithHoldTTL(ttl time.Duration) ServicesOption {
	return func(o *application.Options) { o.HoldTTL = ttl }
}

// WithBaseline overrides the chance baseline.
func WithBaseline(baseline int) ServicesOption {
	return func(o *application.Options) { o.ChanceBaseline = baseline }
}

// WithLocation overrides the day-scoping timezone.
func WithLocation(loc *time.Location) ServicesOption {
	return func(o *application.Options) { o.Location = loc }
}

// NewServices builds the full application stack over a fresh store.
func NewServices(tb testing.TB, opts ...ServicesOption) *Services {
	tb.Helper()
	return NewServicesWithStore(tb, NewStore(tb), opts...)
}

// NewServicesWithStore builds the application stack over store.
func NewServicesWithStore(tb testing.TB, store *sqlstore.Store, opts ...ServicesOption) *Services {
	tb.Helper()

	clock := NewClock(time.Time{})
	slots := NewIDGenerator("slot")
	recorder := &Recorder{}

	options := application.Options{
		HoldTTL:        30 * time.Second,
		ChanceBaseline: 3,
		Location:       time.UTC,
		Now:            clock.NowFunc(),
		SlotIDs:        slots.NextFunc(),
		InvitationIDs:  NewIDGenerator("inv").NextFunc(),
		Events:         recorder,
		Notifications:  recorder,
		Logger:         DiscardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Services{
		Store:    store,
		Clock:    clock,
		Slots:    slots,
		Recorder: recorder,
		Options:  options,
		Booking:  application.NewBookingService(store, options),
		Resolver: application.NewResolver(store, options),
		Ledger:   application.NewLedger(store, options),
	}
}

// Register creates accounts at the baseline for every email.
func (s *Services) Register(tb testing.TB, emails ...string) {
	tb.Helper()
	for _, email := range emails {
		if _, err := s.Ledger.Register(context.Background(), email, ""); err != nil {
			tb.Fatalf("register %s: %v", email, err)
		}
	}
}

// Principal returns a principal for email.
func Principal(email string) application.Principal {
	return application.Principal{Email: email}
}
