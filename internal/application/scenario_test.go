package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/slotbooking/internal/application"
	"github.com/example/slotbooking/internal/persistence"
	"github.com/example/slotbooking/internal/testfixtures"
)

const (
	holder = "holder@example.com"
	alice  = "alice@example.com"
	bob    = "bob@example.com"
	carol  = "carol@example.com"
)

// newScenario builds services with one seeded game and registered players.
func newScenario(t *testing.T, game persistence.Game, opts ...testfixtures.ServicesOption) *testfixtures.Services {
	t.Helper()
	svc := testfixtures.NewServices(t, opts...)
	testfixtures.SeedGames(t, svc.Store, game)
	svc.Register(t, holder, alice, bob, carol)
	return svc
}

func hold(t *testing.T, svc *testfixtures.Services, gameID, start, end string, invitees ...string) application.HoldResult {
	t.Helper()
	result, err := svc.Booking.HoldSlot(context.Background(), application.HoldSlotParams{
		Principal: testfixtures.Principal(holder),
		GameID:    gameID,
		StartTime: start,
		EndTime:   end,
		Invitees:  invitees,
	})
	if err != nil {
		t.Fatalf("HoldSlot returned error: %v", err)
	}
	return result
}

func respond(t *testing.T, svc *testfixtures.Services, inv application.Invitation, accept bool) application.ResponseResult {
	t.Helper()
	result, err := svc.Booking.RespondToInvitation(context.Background(), application.RespondParams{
		Principal:    testfixtures.Principal(inv.RecipientEmail),
		InvitationID: inv.ID,
		Accept:       accept,
	})
	if err != nil {
		t.Fatalf("RespondToInvitation(%s, %v) returned error: %v", inv.RecipientEmail, accept, err)
	}
	return result
}

func invitationFor(t *testing.T, invitations []application.Invitation, email string) application.Invitation {
	t.Helper()
	for _, inv := range invitations {
		if inv.RecipientEmail == email {
			return inv
		}
	}
	t.Fatalf("no invitation for %s", email)
	return application.Invitation{}
}

func resolve(t *testing.T, svc *testfixtures.Services, slot application.Slot) bool {
	t.Helper()
	svc.Clock.AdvancePast(slot.ExpiresAt)
	resolved, err := svc.Resolver.ResolveSlot(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("ResolveSlot returned error: %v", err)
	}
	return resolved
}

func expectChances(t *testing.T, svc *testfixtures.Services, want map[string]int) {
	t.Helper()
	for email, chances := range want {
		if got := testfixtures.Chances(t, svc.Store, email); got != chances {
			t.Errorf("expected %s to have %d chances, got %d", email, chances, got)
		}
	}
}

func TestScenario_HoldAcceptedAndBooked(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "18:00", "18:30", alice, bob)
	if held.Slot.Status != persistence.SlotStatusOnHold || held.Slot.PeopleAccepted != 1 || held.Slot.PeopleAdded != 2 {
		t.Fatalf("unexpected held slot %+v", held.Slot)
	}
	if !held.Slot.ExpiresAt.Equal(testfixtures.ReferenceTime().Add(svc.Options.HoldTTL)) {
		t.Fatalf("expected hold to expire after the ttl, got %s", held.Slot.ExpiresAt)
	}

	accepted := respond(t, svc, invitationFor(t, held.Invitations, alice), true)
	if accepted.Slot.PeopleAccepted != 2 {
		t.Fatalf("expected 2 accepted, got %d", accepted.Slot.PeopleAccepted)
	}
	expectChances(t, svc, map[string]int{holder: 2, alice: 2, bob: 3})

	if !resolve(t, svc, held.Slot) {
		t.Fatalf("expected slot to resolve")
	}

	slot, err := svc.Booking.GetSlot(ctx, held.Slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if slot.Status != persistence.SlotStatusBooked || !slot.IsActive {
		t.Fatalf("expected active booked slot, got %s active=%v", slot.Status, slot.IsActive)
	}
	// Booking keeps the debits.
	expectChances(t, svc, map[string]int{holder: 2, alice: 2, bob: 3})

	invitations, err := svc.Booking.ListInvitations(ctx, testfixtures.Principal(holder), slot.ID)
	if err != nil {
		t.Fatalf("ListInvitations returned error: %v", err)
	}
	if inv := invitationFor(t, invitations, alice); inv.Status != persistence.InvitationAccepted || !inv.IsActive {
		t.Fatalf("expected accepted invitation to stay active, got %s active=%v", inv.Status, inv.IsActive)
	}
	if inv := invitationFor(t, invitations, bob); inv.Status != persistence.InvitationExpired || inv.IsActive {
		t.Fatalf("expected pending invitation to expire, got %s active=%v", inv.Status, inv.IsActive)
	}

	expired := svc.Recorder.Events("slot.expired")
	if len(expired) != 1 || expired[0].Slot.Status != "booked" || expired[0].Slot.PeopleAccepted != 2 {
		t.Fatalf("unexpected expiry events %+v", expired)
	}
	for _, email := range []string{holder, alice} {
		if len(svc.Recorder.NotificationsFor(email)) == 0 {
			t.Errorf("expected %s to be notified", email)
		}
	}
}

func TestScenario_NobodyAcceptsAndHolderIsRefunded(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "18:00", "18:30", alice)
	expectChances(t, svc, map[string]int{holder: 2})

	if !resolve(t, svc, held.Slot) {
		t.Fatalf("expected slot to resolve")
	}

	slot, err := svc.Booking.GetSlot(ctx, held.Slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if slot.Status != persistence.SlotStatusFailed || slot.IsActive {
		t.Fatalf("expected inactive failed slot, got %s active=%v", slot.Status, slot.IsActive)
	}
	expectChances(t, svc, map[string]int{holder: 3, alice: 3})

	invitations, err := svc.Booking.ListInvitations(ctx, testfixtures.Principal(holder), slot.ID)
	if err != nil {
		t.Fatalf("ListInvitations returned error: %v", err)
	}
	if inv := invitationFor(t, invitations, alice); inv.Status != persistence.InvitationExpired || inv.IsActive {
		t.Fatalf("expected invitation to expire, got %s active=%v", inv.Status, inv.IsActive)
	}
}

func TestScenario_UnderfilledSlotRefundsAcceptedPlayers(t *testing.T) {
	game := testfixtures.NewGame(testfixtures.WithPlayers(4, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "12:00", "12:30", alice, bob, carol)
	respond(t, svc, invitationFor(t, held.Invitations, alice), true)
	respond(t, svc, invitationFor(t, held.Invitations, bob), true)
	respond(t, svc, invitationFor(t, held.Invitations, carol), false)
	expectChances(t, svc, map[string]int{holder: 2, alice: 2, bob: 2, carol: 3})

	if !resolve(t, svc, held.Slot) {
		t.Fatalf("expected slot to resolve")
	}

	slot, err := svc.Booking.GetSlot(context.Background(), held.Slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if slot.Status != persistence.SlotStatusFailed {
		t.Fatalf("expected failed slot with 3 of 4 players, got %s", slot.Status)
	}
	expectChances(t, svc, map[string]int{holder: 3, alice: 3, bob: 3, carol: 3})
}

func TestScenario_DeclinedInvitationSurvivesFailure(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "15:00", "15:30", bob)
	respond(t, svc, invitationFor(t, held.Invitations, bob), false)
	expectChances(t, svc, map[string]int{holder: 2, bob: 3})

	if !resolve(t, svc, held.Slot) {
		t.Fatalf("expected slot to resolve")
	}

	slot, err := svc.Booking.GetSlot(ctx, held.Slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if slot.Status != persistence.SlotStatusFailed || slot.IsActive {
		t.Fatalf("expected inactive failed slot, got %s active=%v", slot.Status, slot.IsActive)
	}

	invitations, err := svc.Booking.ListInvitations(ctx, testfixtures.Principal(holder), slot.ID)
	if err != nil {
		t.Fatalf("ListInvitations returned error: %v", err)
	}
	if inv := invitationFor(t, invitations, bob); inv.Status != persistence.InvitationDeclined || inv.IsActive {
		t.Fatalf("expected declined invitation to stay declined, got %s active=%v", inv.Status, inv.IsActive)
	}
	expectChances(t, svc, map[string]int{holder: 3, bob: 3})

	resolved, err := svc.Resolver.ResolveSlot(ctx, held.Slot.ID)
	if err != nil || resolved {
		t.Fatalf("expected second resolution to be a no-op, got resolved=%v err=%v", resolved, err)
	}
	if expired := svc.Recorder.Events("slot.expired"); len(expired) != 1 {
		t.Fatalf("expected exactly one expiry event, got %d", len(expired))
	}
	expectChances(t, svc, map[string]int{holder: 3, bob: 3})
}

func TestScenario_WindowFreesAfterFailure(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 2))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "15:00", "15:30", alice)

	_, err := svc.Booking.HoldSlot(ctx, application.HoldSlotParams{
		Principal: testfixtures.Principal(bob),
		GameID:    game.ID,
		StartTime: "15:00",
		EndTime:   "15:30",
		Invitees:  []string{carol},
	})
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict for a taken window, got %v", err)
	}
	// The failed hold must not have cost bob anything.
	expectChances(t, svc, map[string]int{bob: 3})

	resolve(t, svc, held.Slot)

	retry, err := svc.Booking.HoldSlot(ctx, application.HoldSlotParams{
		Principal: testfixtures.Principal(bob),
		GameID:    game.ID,
		StartTime: "15:00",
		EndTime:   "15:30",
		Invitees:  []string{carol},
	})
	if err != nil {
		t.Fatalf("expected window to be free after failure, got %v", err)
	}
	if retry.Slot.HeldBy != bob {
		t.Fatalf("expected bob to hold the window, got %s", retry.Slot.HeldBy)
	}
}

func TestScenario_AcceptAfterExpiryIsRejected(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "18:00", "18:30", alice)
	svc.Clock.AdvancePast(held.Slot.ExpiresAt)

	_, err := svc.Booking.RespondToInvitation(ctx, application.RespondParams{
		Principal:    testfixtures.Principal(alice),
		InvitationID: invitationFor(t, held.Invitations, alice).ID,
		Accept:       true,
	})
	if !errors.Is(err, application.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after expiry, got %v", err)
	}
	expectChances(t, svc, map[string]int{alice: 3})

	slot, err := svc.Booking.GetSlot(ctx, held.Slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if slot.PeopleAccepted != 1 {
		t.Fatalf("expected headcount to stay at 1, got %d", slot.PeopleAccepted)
	}
}

func TestResolveSlot_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame(testfixtures.WithPlayers(2, 4))
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "18:00", "18:30", alice)
	if !resolve(t, svc, held.Slot) {
		t.Fatalf("expected first resolution to apply")
	}
	svc.Recorder.Reset()

	for i := 0; i < 2; i++ {
		resolved, err := svc.Resolver.ResolveSlot(ctx, held.Slot.ID)
		if err != nil {
			t.Fatalf("repeat resolution returned error: %v", err)
		}
		if resolved {
			t.Fatalf("expected repeat resolution to be a no-op")
		}
	}
	expectChances(t, svc, map[string]int{holder: 3, alice: 3})
	if events := svc.Recorder.Events(""); len(events) != 0 {
		t.Fatalf("expected no events from a no-op, got %+v", events)
	}
}

func TestResolveSlot_SkipsLiveHoldsAndUnknownSlots(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame()
	svc := newScenario(t, game)

	held := hold(t, svc, game.ID, "18:00", "18:30", alice)
	resolved, err := svc.Resolver.ResolveSlot(ctx, held.Slot.ID)
	if err != nil || resolved {
		t.Fatalf("expected live hold to be skipped, got resolved=%v err=%v", resolved, err)
	}

	if _, err := svc.Resolver.ResolveSlot(ctx, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveSlot_MissingGameLeavesHoldForRetry(t *testing.T) {
	ctx := context.Background()
	svc := testfixtures.NewServicesWithStore(t, testfixtures.NewStoreWithoutForeignKeys(t))
	testfixtures.SeedAccount(t, svc.Store, holder, 2)

	slot := testfixtures.SeedSlot(t, svc.Store, testfixtures.NewSlot("ghost", testfixtures.WithHolder(holder)))
	svc.Clock.AdvancePast(slot.ExpiresAt)

	resolved, err := svc.Resolver.ResolveSlot(ctx, slot.ID)
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for the missing game, got %v", err)
	}
	if resolved {
		t.Fatalf("expected slot not to be reported resolved")
	}

	stored, err := svc.Booking.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if stored.Status != persistence.SlotStatusOnHold || !stored.IsActive {
		t.Fatalf("expected slot to stay on-hold, got %s active=%v", stored.Status, stored.IsActive)
	}
	expectChances(t, svc, map[string]int{holder: 2})
	if events := svc.Recorder.Events(""); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if messages := svc.Recorder.NotificationsFor(holder); len(messages) != 0 {
		t.Fatalf("expected no notifications, got %v", messages)
	}

	due, err := svc.Resolver.ListResolvable(ctx, application.ResolvableCursor{}, 10)
	if err != nil {
		t.Fatalf("ListResolvable returned error: %v", err)
	}
	if len(due) != 1 || due[0].ID != slot.ID {
		t.Fatalf("expected the slot to stay due, got %+v", due)
	}

	testfixtures.SeedGames(t, svc.Store, testfixtures.NewGame(testfixtures.WithGameID("ghost"), testfixtures.WithPlayers(2, 4)))

	resolved, err = svc.Resolver.ResolveSlot(ctx, slot.ID)
	if err != nil || !resolved {
		t.Fatalf("expected retry to resolve once the game exists, got resolved=%v err=%v", resolved, err)
	}
	stored, err = svc.Booking.GetSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("GetSlot returned error: %v", err)
	}
	if stored.Status != persistence.SlotStatusFailed {
		t.Fatalf("expected lone holder to fail, got %s", stored.Status)
	}
	expectChances(t, svc, map[string]int{holder: 3})
	if expired := svc.Recorder.Events("slot.expired"); len(expired) != 1 {
		t.Fatalf("expected one expiry event after the retry, got %d", len(expired))
	}
}

func TestResolver_ListResolvableIgnoresDay(t *testing.T) {
	ctx := context.Background()
	game := testfixtures.NewGame()
	svc := newScenario(t, game)

	yesterday := testfixtures.ReferenceTime().Add(-24 * time.Hour)
	stale := testfixtures.SeedSlot(t, svc.Store, testfixtures.NewSlot(game.ID, testfixtures.WithCreatedAt(yesterday, 30*time.Second)))
	hold(t, svc, game.ID, "20:00", "20:30")

	due, err := svc.Resolver.ListResolvable(ctx, application.ResolvableCursor{}, 10)
	if err != nil {
		t.Fatalf("ListResolvable returned error: %v", err)
	}
	if len(due) != 1 || due[0].ID != stale.ID {
		t.Fatalf("expected only yesterday's hold to be due, got %+v", due)
	}
}
