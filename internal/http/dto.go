package http

import (
	"time"

	"github.com/example/slotbooking/internal/application"
	"github.com/example/slotbooking/internal/scheduler"
)

type slotDTO struct {
	ID             string    `json:"id"`
	GameID         string    `json:"gameId"`
	Day            string    `json:"day"`
	StartTime      string    `json:"startTime"`
	EndTime        string    `json:"endTime"`
	Status         string    `json:"status"`
	PeopleAdded    int       `json:"peopleAdded"`
	PeopleAccepted int       `json:"peopleAccepted"`
	HeldBy         string    `json:"heldBy"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toSlotDTO(slot application.Slot) slotDTO {
	return slotDTO{
		ID:             slot.ID,
		GameID:         slot.GameID,
		Day:            slot.Day,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Status:         string(slot.Status),
		PeopleAdded:    slot.PeopleAdded,
		PeopleAccepted: slot.PeopleAccepted,
		HeldBy:         slot.HeldBy,
		IsActive:       slot.IsActive,
		CreatedAt:      slot.CreatedAt.UTC(),
		ExpiresAt:      slot.ExpiresAt.UTC(),
		UpdatedAt:      slot.UpdatedAt.UTC(),
	}
}

func toSlotDTOs(slots []application.Slot) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toSlotDTO(slot))
	}
	return out
}

type invitationDTO struct {
	ID             string     `json:"id"`
	SlotID         string     `json:"slotId"`
	SenderEmail    string     `json:"senderEmail"`
	RecipientEmail string     `json:"recipientEmail"`
	Status         string     `json:"status"`
	SentAt         time.Time  `json:"sentAt"`
	RespondedAt    *time.Time `json:"respondedAt,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	IsActive       bool       `json:"isActive"`
}

func toInvitationDTO(inv application.Invitation) invitationDTO {
	dto := invitationDTO{
		ID:             inv.ID,
		SlotID:         inv.SlotID,
		SenderEmail:    inv.SenderEmail,
		RecipientEmail: inv.RecipientEmail,
		Status:         string(inv.Status),
		SentAt:         inv.SentAt.UTC(),
		ExpiresAt:      inv.ExpiresAt.UTC(),
		IsActive:       inv.IsActive,
	}
	if inv.RespondedAt != nil {
		at := inv.RespondedAt.UTC()
		dto.RespondedAt = &at
	}
	return dto
}

func toInvitationDTOs(invitations []application.Invitation) []invitationDTO {
	out := make([]invitationDTO, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationDTO(inv))
	}
	return out
}

type gameDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

type windowDTO struct {
	StartTime string     `json:"startTime"`
	EndTime   string     `json:"endTime"`
	Status    string     `json:"status"`
	SlotID    string     `json:"slotId,omitempty"`
	HeldBy    string     `json:"heldBy,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func toWindowDTOs(windows []scheduler.Window) []windowDTO {
	out := make([]windowDTO, 0, len(windows))
	for _, w := range windows {
		dto := windowDTO{
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
			Status:    string(w.Status),
			SlotID:    w.SlotID,
			HeldBy:    w.HeldBy,
		}
		if !w.ExpiresAt.IsZero() {
			at := w.ExpiresAt.UTC()
			dto.ExpiresAt = &at
		}
		out = append(out, dto)
	}
	return out
}

type accountDTO struct {
	Email               string    `json:"email"`
	DisplayName         string    `json:"displayName,omitempty"`
	Chances             int       `json:"chances"`
	LastChanceUpdatedAt time.Time `json:"lastChanceUpdatedAt"`
}
