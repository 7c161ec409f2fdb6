package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/olahol/melody"

	"github.com/example/slotbooking/internal/broadcast"
)

// EventSource is the subscription side of the broadcast hub.
type EventSource interface {
	Subscribe(topic string, handler broadcast.Handler) (unsubscribe func())
}

const (
	sseBuffer    = 32
	sseKeepAlive = 15 * time.Second
	wsTopicsKey  = "topics"
	wsPrincipal  = "principal"
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
	wsMaxInbound = 512
)

// EventsHandler streams slot events to clients over Server-Sent Events or
// WebSockets. Clients only see events published while they are connected.
type EventsHandler struct {
	hub       EventSource
	ws        *melody.Melody
	responder responder
	logger    *slog.Logger
	keepAlive time.Duration
	detach    []func()
}

// NewEventsHandler subscribes the websocket fan-out to every topic on hub.
func NewEventsHandler(hub EventSource, logger *slog.Logger) *EventsHandler {
	base := defaultLogger(logger).With("handler", "EventsHandler")

	m := melody.New()
	m.Config.PingPeriod = wsPingPeriod
	m.Config.PongWait = wsPongWait
	m.Config.MaxMessageSize = wsMaxInbound

	m.HandleConnect(func(s *melody.Session) {
		principal, _ := s.Get(wsPrincipal)
		base.Debug("websocket subscriber connected", "principal", principal)
	})
	m.HandleDisconnect(func(s *melody.Session) {
		principal, _ := s.Get(wsPrincipal)
		base.Debug("websocket subscriber disconnected", "principal", principal)
	})
	m.HandleError(func(s *melody.Session, err error) {
		base.Warn("websocket error", "error", err)
	})

	h := &EventsHandler{
		hub:       hub,
		ws:        m,
		responder: newResponder(base),
		logger:    base,
		keepAlive: sseKeepAlive,
	}
	for _, topic := range broadcast.Topics() {
		h.detach = append(h.detach, hub.Subscribe(topic, h.fanOut))
	}
	return h
}

// Close disconnects every websocket client and stops listening to the hub.
func (h *EventsHandler) Close() error {
	for _, detach := range h.detach {
		detach()
	}
	h.detach = nil
	return h.ws.Close()
}

func (h *EventsHandler) fanOut(ctx context.Context, event broadcast.Event) {
	if h.ws.Len() == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode event", "topic", event.Topic, "error", err)
		return
	}
	err = h.ws.BroadcastFilter(payload, func(s *melody.Session) bool {
		value, ok := s.Get(wsTopicsKey)
		if !ok {
			return false
		}
		topics, _ := value.(map[string]struct{})
		_, wanted := topics[event.Topic]
		return wanted
	})
	if err != nil && !errors.Is(err, melody.ErrClosed) {
		h.logger.WarnContext(ctx, "websocket broadcast failed", "topic", event.Topic, "error", err)
	}
}

// Stream handles GET /events/{topic} as a Server-Sent Events stream.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	topic, _ := ResourceIDFromContext(r.Context())
	if !broadcast.KnownTopic(topic) {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errUnknownTopic)
		return
	}

	controller := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": subscribed\n\n"); err != nil {
		return
	}
	if err := controller.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), errStreamingAbsent.Error(), "error", err)
		return
	}

	events := make(chan broadcast.Event, sseBuffer)
	unsubscribe := h.hub.Subscribe(topic, func(ctx context.Context, event broadcast.Event) {
		select {
		case events <- event:
		default:
			h.logger.WarnContext(ctx, "event stream too slow, dropping event", "topic", topic)
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, payload); err != nil {
				return
			}
		}
		if err := controller.Flush(); err != nil {
			return
		}
	}
}

// WebSocket handles GET /events/ws?topics=a,b. Inbound messages are ignored.
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	keys := map[string]any{
		wsTopicsKey: topics,
		wsPrincipal: principal.Email,
	}
	if err := h.ws.HandleRequestWithKeys(w, r, keys); err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
	}
}

// parseTopics defaults to every topic when raw is empty.
func parseTopics(raw string) (map[string]struct{}, error) {
	topics := make(map[string]struct{})
	if strings.TrimSpace(raw) == "" {
		for _, topic := range broadcast.Topics() {
			topics[topic] = struct{}{}
		}
		return topics, nil
	}
	for _, part := range strings.Split(raw, ",") {
		topic := strings.TrimSpace(part)
		if topic == "" {
			continue
		}
		if !broadcast.KnownTopic(topic) {
			return nil, fmt.Errorf("%w: %s", errUnknownTopic, topic)
		}
		topics[topic] = struct{}{}
	}
	if len(topics) == 0 {
		return nil, errUnknownTopic
	}
	return topics, nil
}
