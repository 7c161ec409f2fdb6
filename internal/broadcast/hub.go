// Package broadcast fans slot lifecycle events out to in-process subscribers.
//
// Delivery is synchronous and best-effort: a handler sees an event only if it
// was subscribed when the event was published. There is no replay.
package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	TopicSlotCreated       = "slot.created"
	TopicSlotStatusUpdated = "slot.statusUpdated"
	TopicSlotExpired       = "slot.expired"
)

// Topics lists every topic published by the service.
func Topics() []string {
	return []string{TopicSlotCreated, TopicSlotStatusUpdated, TopicSlotExpired}
}

// KnownTopic reports whether topic is published by the service.
func KnownTopic(topic string) bool {
	for _, known := range Topics() {
		if known == topic {
			return true
		}
	}
	return false
}

// SlotEvent is the payload carried by every slot topic.
type SlotEvent struct {
	GameID         string `json:"gameId"`
	SlotID         string `json:"slotId"`
	Status         string `json:"newStatus"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	HeldBy         string `json:"heldBy"`
	IsActive       bool   `json:"isActive"`
	PeopleAccepted int    `json:"peopleAccepted"`
}

// Event is one published message.
type Event struct {
	Topic       string    `json:"topic"`
	Slot        SlotEvent `json:"slot"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Handler receives events. Handlers run on the publisher's goroutine and
// must return quickly.
type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Hub is a topic keyed publish/subscribe registry.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	now    func() time.Time
	logger *slog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[uint64]Handler),
		now:    time.Now,
		logger: logger.With("component", "broadcast"),
	}
}

// Subscribe registers handler for topic and returns a function that removes
// it. The returned function is safe to call more than once.
func (h *Hub) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]Handler)
	}
	h.subs[topic][id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
		})
	}
}

// Publish delivers event to the handlers subscribed to its topic, in
// subscription order. A panicking handler is logged and skipped.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if event.PublishedAt.IsZero() {
		event.PublishedAt = h.now().UTC()
	}

	h.mu.RLock()
	snapshot := make([]subscription, 0, len(h.subs[event.Topic]))
	for id, handler := range h.subs[event.Topic] {
		snapshot = append(snapshot, subscription{id: id, handler: handler})
	}
	h.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	for _, sub := range snapshot {
		h.deliver(ctx, sub, event)
	}
}

func (h *Hub) deliver(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.ErrorContext(ctx, "subscriber panicked", "topic", event.Topic, "subscription", sub.id, "panic", p)
		}
	}()
	sub.handler(ctx, event)
}

// Subscribers returns the number of handlers registered for topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
