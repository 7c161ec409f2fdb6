package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/slotbooking/internal/application"
)

type slotService interface {
	HoldSlot(ctx context.Context, params application.HoldSlotParams) (application.HoldResult, error)
	EditHold(ctx context.Context, params application.EditHoldParams) (application.HoldResult, error)
	CancelSlot(ctx context.Context, params application.CancelSlotParams) (application.Slot, error)
	GetSlot(ctx context.Context, slotID string) (application.Slot, error)
	ListSlots(ctx context.Context, params application.ListSlotsParams) ([]application.Slot, error)
}

type holdRequest struct {
	GameID    string   `json:"gameId"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Invitees  []string `json:"invitees"`
}

type editRequest struct {
	Invitees []string `json:"invitees"`
}

type holdResponse struct {
	Slot        slotDTO         `json:"slot"`
	Invitations []invitationDTO `json:"invitations"`
}

type SlotHandler struct {
	service   slotService
	responder responder
	logger    *slog.Logger
}

func NewSlotHandler(service slotService, logger *slog.Logger) *SlotHandler {
	base := defaultLogger(logger)
	return &SlotHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SlotHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SlotHandler", operation, attrs...)
}

// Hold handles POST /slots.
func (h *SlotHandler) Hold(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Hold", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode hold request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.HoldSlot(r.Context(), application.HoldSlotParams{
		Principal: principal,
		GameID:    req.GameID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Invitees:  req.Invitees,
	})
	if err != nil {
		h.log(r.Context(), "Hold", "game_id", req.GameID).WarnContext(r.Context(), "hold rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", "/slots/"+result.Slot.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, holdResponse{
		Slot:        toSlotDTO(result.Slot),
		Invitations: toInvitationDTOs(result.Invitations),
	})
}

// List handles GET /slots.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	slots, err := h.service.ListSlots(r.Context(), application.ListSlotsParams{
		Principal: principal,
		GameID:    query.Get("gameId"),
		View:      application.SlotView(query.Get("view")),
	})
	if err != nil {
		h.log(r.Context(), "List").WarnContext(r.Context(), "slot listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"slots": toSlotDTOs(slots)})
}

// Get handles GET /slots/{id}.
func (h *SlotHandler) Get(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	slot, err := h.service.GetSlot(r.Context(), slotID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"slot": toSlotDTO(slot)})
}

// Edit handles PUT /slots/{id}.
func (h *SlotHandler) Edit(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Edit", "slot_id", slotID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode edit request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.EditHold(r.Context(), application.EditHoldParams{
		Principal: principal,
		SlotID:    slotID,
		Invitees:  req.Invitees,
	})
	if err != nil {
		h.log(r.Context(), "Edit", "slot_id", slotID).WarnContext(r.Context(), "edit rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, holdResponse{
		Slot:        toSlotDTO(result.Slot),
		Invitations: toInvitationDTOs(result.Invitations),
	})
}

// Cancel handles POST /slots/{id}/cancel.
func (h *SlotHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	slot, err := h.service.CancelSlot(r.Context(), application.CancelSlotParams{Principal: principal, SlotID: slotID})
	if err != nil {
		h.log(r.Context(), "Cancel", "slot_id", slotID).WarnContext(r.Context(), "cancel rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"slot": toSlotDTO(slot)})
}
