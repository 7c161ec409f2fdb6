package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

var (
	gameCounter uint64
	slotCounter uint64
)

// GameOption adjusts a game fixture.
type GameOption func(*persistence.Game)

// NewGame returns a two to four player game with a unique id.
func NewGame(opts ...GameOption) persistence.Game {
	idx := atomic.AddUint64(&gameCounter, 1)
	game := persistence.Game{
		ID:         fmt.Sprintf("game-%03d", idx),
		Name:       fmt.Sprintf("Game %03d", idx),
		MinPlayers: 2,
		MaxPlayers: 4,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&game)
	}
	return game
}

// WithGameID overrides the game id.
func WithGameID(id string) GameOption {
	return func(g *persistence.Game) { g.ID = id }
}

// WithGameName overrides the display name.
func WithGameName(name string) GameOption {
	return func(g *persistence.Game) { g.Name = name }
}

// WithPlayers sets the player bounds.
func WithPlayers(minPlayers, maxPlayers int) GameOption {
	return func(g *persistence.Game) {
		g.MinPlayers = minPlayers
		g.MaxPlayers = maxPlayers
	}
}

// SlotOption adjusts a slot fixture.
type SlotOption func(*persistence.Slot)

// NewSlot returns an on-hold slot for gameID created at ReferenceTime with a
// thirty second hold. The window advances by thirty minutes per call so that
// fixtures never collide.
func NewSlot(gameID string, opts ...SlotOption) persistence.Slot {
	idx := atomic.AddUint64(&slotCounter, 1)
	start := 9*60 + int((idx-1)%24)*30
	slot := persistence.Slot{
		ID:             fmt.Sprintf("slot-fixture-%03d", idx),
		GameID:         gameID,
		Day:            referenceTime.Format(time.DateOnly),
		StartTime:      fmt.Sprintf("%02d:%02d", start/60, start%60),
		EndTime:        fmt.Sprintf("%02d:%02d", (start+30)/60, (start+30)%60),
		Status:         persistence.SlotStatusOnHold,
		PeopleAccepted: 1,
		HeldBy:         "holder@example.com",
		IsActive:       true,
		CreatedAt:      referenceTime,
		ExpiresAt:      referenceTime.Add(30 * time.Second),
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&slot)
	}
	return slot
}

// WithSlotID overrides the slot id.
func WithSlotID(id string) SlotOption {
	return func(s *persistence.Slot) { s.ID = id }
}

// WithWindow sets the slot's start and end clock times.
func WithWindow(start, end string) SlotOption {
	return func(s *persistence.Slot) {
		s.StartTime = start
		s.EndTime = end
	}
}

// WithHolder sets the holding user.
func WithHolder(email string) SlotOption {
	return func(s *persistence.Slot) { s.HeldBy = email }
}

// WithSlotStatus sets the status and derives IsActive from it.
func WithSlotStatus(status persistence.SlotStatus) SlotOption {
	return func(s *persistence.Slot) {
		s.Status = status
		s.IsActive = status == persistence.SlotStatusOnHold || status == persistence.SlotStatusBooked
	}
}

// WithCreatedAt moves creation, expiry, and day key together.
func WithCreatedAt(at time.Time, ttl time.Duration) SlotOption {
	return func(s *persistence.Slot) {
		s.CreatedAt = at
		s.UpdatedAt = at
		s.ExpiresAt = at.Add(ttl)
		s.Day = at.Format(time.DateOnly)
	}
}

// WithAccepted sets the accepted headcount, holder included.
func WithAccepted(n int) SlotOption {
	return func(s *persistence.Slot) { s.PeopleAccepted = n }
}

// SeedGames upserts games through repos and fails the test on error.
func SeedGames(tb testing.TB, repos persistence.Repositories, games ...persistence.Game) {
	tb.Helper()
	for _, game := range games {
		if err := repos.Games().UpsertGame(context.Background(), game); err != nil {
			tb.Fatalf("seed game %s: %v", game.ID, err)
		}
	}
}

// SeedAccount creates an account with the given balance.
func SeedAccount(tb testing.TB, repos persistence.Repositories, email string, chances int) persistence.Account {
	tb.Helper()
	account, err := repos.Accounts().EnsureAccount(context.Background(), persistence.Account{
		Email:               email,
		DisplayName:         email,
		Chances:             chances,
		LastChanceUpdatedAt: referenceTime,
		CreatedAt:           referenceTime,
	})
	if err != nil {
		tb.Fatalf("seed account %s: %v", email, err)
	}
	return account
}

// SeedSlot inserts slot directly, bypassing the application layer.
func SeedSlot(tb testing.TB, repos persistence.Repositories, slot persistence.Slot) persistence.Slot {
	tb.Helper()
	if err := repos.Slots().CreateSlot(context.Background(), slot); err != nil {
		tb.Fatalf("seed slot %s: %v", slot.ID, err)
	}
	return slot
}

// Chances returns the current balance for email.
func Chances(tb testing.TB, repos persistence.Repositories, email string) int {
	tb.Helper()
	account, err := repos.Accounts().GetAccount(context.Background(), email)
	if err != nil {
		tb.Fatalf("load account %s: %v", email, err)
	}
	return account.Chances
}
