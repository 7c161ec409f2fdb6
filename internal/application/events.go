package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/persistence"
)

func slotEvent(topic string, slot Slot) broadcast.Event {
	return broadcast.Event{
		Topic: topic,
		Slot: broadcast.SlotEvent{
			GameID:         slot.GameID,
			SlotID:         slot.ID,
			Status:         string(slot.Status),
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			HeldBy:         slot.HeldBy,
			IsActive:       slot.IsActive,
			PeopleAccepted: slot.PeopleAccepted,
		},
	}
}

func gameLabel(game Game) string {
	if strings.TrimSpace(game.Name) != "" {
		return game.Name
	}
	return game.ID
}

func inviteMessage(game Game, slot Slot, loc *time.Location) string {
	return fmt.Sprintf("%s invited you to play %s from %s to %s. Respond before %s.",
		slot.HeldBy, gameLabel(game), slot.StartTime, slot.EndTime, slot.ExpiresAt.In(loc).Format("15:04:05"))
}

func withdrawnMessage(game Game, slot Slot) string {
	return fmt.Sprintf("%s removed you from the %s slot %s-%s.", slot.HeldBy, gameLabel(game), slot.StartTime, slot.EndTime)
}

func cancelledMessage(game Game, slot Slot) string {
	return fmt.Sprintf("%s cancelled the %s slot %s-%s.", slot.HeldBy, gameLabel(game), slot.StartTime, slot.EndTime)
}

func responseMessage(game Game, slot Slot, responder string, accepted bool) string {
	verb := "declined"
	if accepted {
		verb = "accepted"
	}
	return fmt.Sprintf("%s %s your invitation for %s %s-%s.", responder, verb, gameLabel(game), slot.StartTime, slot.EndTime)
}

func resolutionMessage(res Resolution) string {
	slot := res.Slot
	if slot.Status == persistence.SlotStatusBooked {
		return fmt.Sprintf("Your %s slot %s-%s is booked with %d players.",
			gameLabel(res.Game), slot.StartTime, slot.EndTime, slot.PeopleAccepted)
	}
	return fmt.Sprintf("Your %s slot %s-%s could not be booked: %d accepted, %d-%d players needed. Your chance has been refunded.",
		gameLabel(res.Game), slot.StartTime, slot.EndTime, slot.PeopleAccepted, res.Game.MinPlayers, res.Game.MaxPlayers)
}
