package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/slotbooking/internal/application"
)

type invitationService interface {
	ListInvitations(ctx context.Context, principal application.Principal, slotID string) ([]application.Invitation, error)
	RespondToInvitation(ctx context.Context, params application.RespondParams) (application.ResponseResult, error)
}

type InvitationHandler struct {
	service   invitationService
	responder responder
	logger    *slog.Logger
}

func NewInvitationHandler(service invitationService, logger *slog.Logger) *InvitationHandler {
	base := defaultLogger(logger)
	return &InvitationHandler{service: service, responder: newResponder(base), logger: base}
}

// List handles GET /invitations?slotId=.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	invitations, err := h.service.ListInvitations(r.Context(), principal, r.URL.Query().Get("slotId"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"invitations": toInvitationDTOs(invitations)})
}

// Accept handles POST /invitations/{id}/accept.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Decline handles POST /invitations/{id}/decline.
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *InvitationHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	invitationID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "InvitationHandler", "Respond", "invitation_id", invitationID, "accept", accept)

	result, err := h.service.RespondToInvitation(r.Context(), application.RespondParams{
		Principal:    principal,
		InvitationID: invitationID,
		Accept:       accept,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "response rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"invitation": toInvitationDTO(result.Invitation),
		"slot":       toSlotDTO(result.Slot),
	})
}
