package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/slotbooking/internal/application"
	"github.com/example/slotbooking/internal/scheduler"
)

type catalogService interface {
	ListGames(ctx context.Context) ([]application.Game, error)
	DayWindows(ctx context.Context, gameID string) ([]scheduler.Window, error)
	Account(ctx context.Context, principal application.Principal) (application.Account, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogHandler serves games, day windows, the caller's account, and health.
type CatalogHandler struct {
	service   catalogService
	store     Pinger
	responder responder
}

func NewCatalogHandler(service catalogService, store Pinger, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, store: store, responder: newResponder(defaultLogger(logger))}
}

// Games handles GET /games.
func (h *CatalogHandler) Games(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.ListGames(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]gameDTO, 0, len(games))
	for _, g := range games {
		out = append(out, gameDTO{ID: g.ID, Name: g.Name, MinPlayers: g.MinPlayers, MaxPlayers: g.MaxPlayers})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"games": out})
}

// Windows handles GET /games/{id}/windows.
func (h *CatalogHandler) Windows(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	windows, err := h.service.DayWindows(r.Context(), gameID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"gameId": gameID, "windows": toWindowDTOs(windows)})
}

// Me handles GET /accounts/me.
func (h *CatalogHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	account, err := h.service.Account(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, accountDTO{
		Email:               account.Email,
		DisplayName:         account.DisplayName,
		Chances:             account.Chances,
		LastChanceUpdatedAt: account.LastChanceUpdatedAt.UTC(),
	})
}

// Health handles GET /healthz.
func (h *CatalogHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
