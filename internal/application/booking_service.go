package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/persistence"
	"github.com/example/slotbooking/internal/scheduler"
)

// BookingService implements the caller-facing operations: hold, edit, cancel,
// respond, and the day-scoped reads. Each mutation runs in one transaction;
// events and notifications go out only after it commits.
type BookingService struct {
	store   persistence.Store
	opts    Options
	windows scheduler.WindowConfig
}

// NewBookingService constructs the service.
func NewBookingService(store persistence.Store, opts Options) *BookingService {
	return &BookingService{store: store, opts: opts.withDefaults(), windows: scheduler.DefaultWindowConfig()}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.opts.Logger, "BookingService", operation, attrs...)
}

type registrySet struct {
	games       persistence.GameRepository
	slots       *SlotRegistry
	invitations *InvitationRegistry
	ledger      *Ledger
}

func bindRegistries(repos persistence.Repositories, opts Options) registrySet {
	return registrySet{
		games:       repos.Games(),
		slots:       NewSlotRegistry(repos, opts),
		invitations: NewInvitationRegistry(repos, opts),
		ledger:      NewLedger(repos, opts),
	}
}

func (r registrySet) game(ctx context.Context, id string) (Game, error) {
	game, err := r.games.GetGame(ctx, id)
	if err != nil {
		return Game{}, mapStoreError(err)
	}
	return game, nil
}

// HoldSlot places a new hold, debits the holder one chance, and invites the
// listed players.
func (s *BookingService) HoldSlot(ctx context.Context, params HoldSlotParams) (result HoldResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	holder := normalizeEmail(params.Principal.Email)
	logger := s.loggerWith(ctx, "HoldSlot", "holder", holder, "game_id", params.GameID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to hold slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_id", result.Slot.ID).InfoContext(ctx, "slot held", "invitees", len(result.Invitations))
	}()

	if holder == "" {
		err = ErrUnauthorized
		return
	}

	invitees, vErr := normalizeInvitees(holder, params.Invitees)
	if winErr := validateWindow(params.GameID, params.StartTime, params.EndTime); winErr.HasErrors() {
		for field, msg := range winErr.FieldErrors {
			vErr.add(field, msg)
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var game Game
	err = s.store.WithinTx(ctx, func(repos persistence.Repositories) error {
		reg := bindRegistries(repos, s.opts)

		var txErr error
		game, txErr = reg.game(ctx, params.GameID)
		if txErr != nil {
			return txErr
		}
		if bounds := validateHeadcount(game, len(invitees)); bounds.HasErrors() {
			return bounds
		}

		slotID := strings.TrimSpace(params.SlotID)
		if slotID == "" {
			slotID = s.opts.SlotIDs()
		}
		slot, txErr := reg.slots.Create(ctx, Slot{
			ID:          slotID,
			GameID:      game.ID,
			StartTime:   params.StartTime,
			EndTime:     params.EndTime,
			Status:      persistence.SlotStatusOnHold,
			PeopleAdded: len(invitees),
			HeldBy:      holder,
		})
		if txErr != nil {
			return txErr
		}
		if txErr := reg.ledger.Adjust(ctx, []string{holder}, -1); txErr != nil {
			return txErr
		}
		invitations, txErr := reg.invitations.CreateMany(ctx, slot.ID, invitees, holder)
		if txErr != nil {
			return txErr
		}
		result = HoldResult{Slot: slot, Invitations: invitations}
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		result = HoldResult{}
		return
	}

	s.opts.Events.Publish(ctx, slotEvent(broadcast.TopicSlotCreated, result.Slot))
	for _, inv := range result.Invitations {
		s.opts.Notifications.Enqueue(ctx, inv.RecipientEmail, inviteMessage(game, result.Slot, s.opts.Location))
	}
	return
}

// EditHold replaces the invitee list of an on-hold slot. Accepted invitees
// cannot be removed; removed pending invitees are marked slot-cancelled.
func (s *BookingService) EditHold(ctx context.Context, params EditHoldParams) (result HoldResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	actor := normalizeEmail(params.Principal.Email)
	logger := s.loggerWith(ctx, "EditHold", "actor", actor, "slot_id", params.SlotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to edit hold", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "hold edited", "people_added", result.Slot.PeopleAdded)
	}()

	invitees, vErr := normalizeInvitees(actor, params.Invitees)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var (
		game    Game
		added   []Invitation
		removed []string
	)
	err = s.store.WithinTx(ctx, func(repos persistence.Repositories) error {
		added, removed = nil, nil
		reg := bindRegistries(repos, s.opts)

		slot, txErr := reg.slots.Get(ctx, params.SlotID)
		if txErr != nil {
			return txErr
		}
		if slot.HeldBy != actor {
			return ErrUnauthorized
		}
		if slot.Status != persistence.SlotStatusOnHold || !holdRemaining(slot, s.opts.Now()) {
			return fmt.Errorf("edit slot %s in %s: %w", slot.ID, slot.Status, ErrInvalidTransition)
		}

		game, txErr = reg.game(ctx, slot.GameID)
		if txErr != nil {
			return txErr
		}
		if bounds := validateHeadcount(game, len(invitees)); bounds.HasErrors() {
			return bounds
		}

		current, txErr := reg.invitations.ActiveBySlot(ctx, slot.ID)
		if txErr != nil {
			return txErr
		}
		wanted := make(map[string]struct{}, len(invitees))
		for _, email := range invitees {
			wanted[email] = struct{}{}
		}
		existing := make(map[string]struct{}, len(current))
		for _, inv := range current {
			existing[inv.RecipientEmail] = struct{}{}
			if _, keep := wanted[inv.RecipientEmail]; keep {
				continue
			}
			if inv.Status == persistence.InvitationAccepted {
				bad := &ValidationError{}
				bad.add("invitees", "accepted invitees cannot be removed")
				return bad
			}
			removed = append(removed, inv.RecipientEmail)
		}
		var fresh []string
		for _, email := range invitees {
			if _, ok := existing[email]; !ok {
				fresh = append(fresh, email)
			}
		}

		if len(removed) > 0 {
			if _, txErr := reg.invitations.UpdateStatusBulk(ctx, slot.ID, removed, persistence.InvitationSlotCancelled, false); txErr != nil {
				return txErr
			}
		}
		added, txErr = reg.invitations.CreateMany(ctx, slot.ID, fresh, actor)
		if txErr != nil {
			return txErr
		}
		if txErr := reg.slots.UpdatePeopleAdded(ctx, slot.ID, len(invitees)); txErr != nil {
			return txErr
		}

		slot, txErr = reg.slots.Get(ctx, slot.ID)
		if txErr != nil {
			return txErr
		}
		active, txErr := reg.invitations.ActiveBySlot(ctx, slot.ID)
		if txErr != nil {
			return txErr
		}
		result = HoldResult{Slot: slot, Invitations: active}
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		result = HoldResult{}
		return
	}

	s.opts.Events.Publish(ctx, slotEvent(broadcast.TopicSlotStatusUpdated, result.Slot))
	for _, inv := range added {
		s.opts.Notifications.Enqueue(ctx, inv.RecipientEmail, inviteMessage(game, result.Slot, s.opts.Location))
	}
	for _, email := range removed {
		s.opts.Notifications.Enqueue(ctx, email, withdrawnMessage(game, result.Slot))
	}
	return
}

// CancelSlot cancels an on-hold slot on behalf of its holder. Active
// invitations become slot-cancelled, and the holder and every accepted
// invitee get their chance back.
func (s *BookingService) CancelSlot(ctx context.Context, params CancelSlotParams) (slot Slot, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	actor := normalizeEmail(params.Principal.Email)
	logger := s.loggerWith(ctx, "CancelSlot", "actor", actor, "slot_id", params.SlotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot cancelled")
	}()

	var (
		game     Game
		notified []string
	)
	err = s.store.WithinTx(ctx, func(repos persistence.Repositories) error {
		notified = nil
		reg := bindRegistries(repos, s.opts)

		current, txErr := reg.slots.Get(ctx, params.SlotID)
		if txErr != nil {
			return txErr
		}
		if current.HeldBy != actor {
			return ErrUnauthorized
		}
		game, txErr = reg.game(ctx, current.GameID)
		if txErr != nil {
			return txErr
		}
		active, txErr := reg.invitations.ActiveBySlot(ctx, current.ID)
		if txErr != nil {
			return txErr
		}

		slot, txErr = reg.slots.UpdateStatus(ctx, current.ID, persistence.SlotStatusCancelled, false)
		if txErr != nil {
			return txErr
		}
		if _, txErr := reg.invitations.UpdateStatusBulk(ctx, slot.ID, nil, persistence.InvitationSlotCancelled, false); txErr != nil {
			return txErr
		}
		refunds := append([]string{slot.HeldBy}, recipientsWith(active, persistence.InvitationAccepted, true)...)
		if txErr := reg.ledger.Adjust(ctx, refunds, 1); txErr != nil {
			return txErr
		}
		for _, inv := range active {
			notified = append(notified, inv.RecipientEmail)
		}
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		slot = Slot{}
		return
	}

	s.opts.Events.Publish(ctx, slotEvent(broadcast.TopicSlotStatusUpdated, slot))
	for _, email := range notified {
		s.opts.Notifications.Enqueue(ctx, email, cancelledMessage(game, slot))
	}
	return
}

// RespondToInvitation accepts or declines a pending invitation. Accepting
// debits the invitee one chance and counts them towards the slot's headcount.
func (s *BookingService) RespondToInvitation(ctx context.Context, params RespondParams) (result ResponseResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	actor := normalizeEmail(params.Principal.Email)
	logger := s.loggerWith(ctx, "RespondToInvitation", "actor", actor, "invitation_id", params.InvitationID, "accept", params.Accept)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to respond to invitation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_id", result.Slot.ID).InfoContext(ctx, "invitation answered", "status", result.Invitation.Status)
	}()

	var game Game
	err = s.store.WithinTx(ctx, func(repos persistence.Repositories) error {
		reg := bindRegistries(repos, s.opts)

		inv, txErr := reg.invitations.Get(ctx, params.InvitationID)
		if txErr != nil {
			return txErr
		}
		if inv.RecipientEmail != actor {
			return ErrUnauthorized
		}
		if inv.Status != persistence.InvitationPending || !inv.IsActive {
			return fmt.Errorf("invitation %s is %s: %w", inv.ID, inv.Status, ErrInvalidTransition)
		}
		slot, txErr := reg.slots.Get(ctx, inv.SlotID)
		if txErr != nil {
			return txErr
		}
		if slot.Status != persistence.SlotStatusOnHold || !holdRemaining(slot, s.opts.Now()) {
			return fmt.Errorf("slot %s is %s: %w", slot.ID, slot.Status, ErrInvalidTransition)
		}
		game, txErr = reg.game(ctx, slot.GameID)
		if txErr != nil {
			return txErr
		}

		if params.Accept {
			// The slot row is written first so that a concurrent resolution
			// of the same slot serialises behind this transaction.
			if txErr := reg.slots.AddAccepted(ctx, slot.ID, 1); txErr != nil {
				return txErr
			}
			inv, txErr = reg.invitations.Respond(ctx, inv.ID, persistence.InvitationAccepted, true)
			if txErr != nil {
				return txErr
			}
			if txErr := reg.ledger.Adjust(ctx, []string{actor}, -1); txErr != nil {
				return txErr
			}
		} else {
			inv, txErr = reg.invitations.Respond(ctx, inv.ID, persistence.InvitationDeclined, false)
			if txErr != nil {
				return txErr
			}
		}

		slot, txErr = reg.slots.Get(ctx, slot.ID)
		if txErr != nil {
			return txErr
		}
		result = ResponseResult{Invitation: inv, Slot: slot}
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		result = ResponseResult{}
		return
	}

	s.opts.Events.Publish(ctx, slotEvent(broadcast.TopicSlotStatusUpdated, result.Slot))
	s.opts.Notifications.Enqueue(ctx, result.Slot.HeldBy, responseMessage(game, result.Slot, actor, params.Accept))
	return
}

// GetSlot returns one slot by id.
func (s *BookingService) GetSlot(ctx context.Context, slotID string) (Slot, error) {
	return NewSlotRegistry(s.store, s.opts).Get(ctx, slotID)
}

// ListSlots returns today's slots for the requested view.
func (s *BookingService) ListSlots(ctx context.Context, params ListSlotsParams) ([]Slot, error) {
	registry := NewSlotRegistry(s.store, s.opts)
	email := normalizeEmail(params.Principal.Email)

	switch params.View {
	case SlotViewActive, "":
		if params.GameID == "" {
			return nil, gameRequired()
		}
		return registry.FindByGameID(ctx, params.GameID, persistence.SlotStatusOnHold, persistence.SlotStatusBooked)
	case SlotViewExpired:
		if params.GameID == "" {
			return nil, gameRequired()
		}
		return registry.FindByGameID(ctx, params.GameID, persistence.SlotStatusBooked, persistence.SlotStatusFailed)
	case SlotViewMine:
		return registry.FindByParticipant(ctx, email)
	case SlotViewInvited:
		return registry.FindByInvitee(ctx, email)
	}

	vErr := &ValidationError{}
	vErr.add("view", "view must be one of active, expired, mine, invited")
	return nil, vErr
}

// ListInvitations returns the invitations of a slot, or the caller's
// invitations from today when slotID is empty.
func (s *BookingService) ListInvitations(ctx context.Context, principal Principal, slotID string) ([]Invitation, error) {
	registry := NewInvitationRegistry(s.store, s.opts)
	if strings.TrimSpace(slotID) != "" {
		if _, err := NewSlotRegistry(s.store, s.opts).Get(ctx, slotID); err != nil {
			return nil, err
		}
		return registry.BySlot(ctx, slotID)
	}
	return registry.ByRecipient(ctx, normalizeEmail(principal.Email))
}

// Account returns the caller's ledger entry, creating it on first use.
func (s *BookingService) Account(ctx context.Context, principal Principal) (Account, error) {
	return NewLedger(s.store, s.opts).Register(ctx, principal.Email, principal.DisplayName)
}

// ListGames returns the game catalog.
func (s *BookingService) ListGames(ctx context.Context) ([]Game, error) {
	games, err := s.store.Games().ListGames(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return games, nil
}

// DayWindows returns today's windows for a game with their occupancy.
func (s *BookingService) DayWindows(ctx context.Context, gameID string) ([]scheduler.Window, error) {
	if _, err := bindRegistries(s.store, s.opts).game(ctx, gameID); err != nil {
		return nil, err
	}
	slots, err := NewSlotRegistry(s.store, s.opts).FindByGameID(ctx, gameID, persistence.SlotStatusOnHold, persistence.SlotStatusBooked)
	if err != nil {
		return nil, err
	}
	return scheduler.DayWindows(s.windows, slots)
}

func gameRequired() error {
	vErr := &ValidationError{}
	vErr.add("gameId", "game is required")
	return vErr
}

func normalizeInvitees(holder string, invitees []string) ([]string, *ValidationError) {
	vErr := &ValidationError{}
	seen := make(map[string]struct{}, len(invitees))
	out := make([]string, 0, len(invitees))
	for _, raw := range invitees {
		email := normalizeEmail(raw)
		switch {
		case email == "" || !strings.Contains(email, "@"):
			vErr.add("invitees", "invitees must be email addresses")
			continue
		case email == holder:
			vErr.add("invitees", "holder cannot invite themselves")
			continue
		}
		if _, dup := seen[email]; dup {
			vErr.add("invitees", "invitees must be unique")
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out, vErr
}

// validateHeadcount checks that the holder plus invitees can satisfy the game.
func validateHeadcount(game Game, invitees int) *ValidationError {
	vErr := &ValidationError{}
	total := invitees + 1
	if total < game.MinPlayers {
		vErr.add("invitees", fmt.Sprintf("at least %d players are required", game.MinPlayers))
	}
	if total > game.MaxPlayers {
		vErr.add("invitees", fmt.Sprintf("at most %d players are allowed", game.MaxPlayers))
	}
	return vErr
}
