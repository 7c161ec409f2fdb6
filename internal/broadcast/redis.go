package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "slotbooking:"

// RedisRelay forwards hub events to Redis pub/sub so that other processes
// (dashboards, other replicas' websocket fan-out) can observe them.
// Publishing happens on the relay's own goroutine; when its buffer is full
// events are dropped.
type RedisRelay struct {
	client redis.UniversalClient
	prefix string
	queue  chan Event
	logger *slog.Logger
}

// NewRedisRelay constructs a relay with the given buffer size.
func NewRedisRelay(client redis.UniversalClient, prefix string, buffer int, logger *slog.Logger) *RedisRelay {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		client: client,
		prefix: prefix,
		queue:  make(chan Event, buffer),
		logger: logger.With("component", "redis_relay"),
	}
}

// Channel returns the Redis channel used for topic.
func (r *RedisRelay) Channel(topic string) string {
	return r.prefix + topic
}

// Attach subscribes the relay to every known topic on hub. The returned
// function detaches it.
func (r *RedisRelay) Attach(hub *Hub) (detach func()) {
	unsubs := make([]func(), 0, len(Topics()))
	for _, topic := range Topics() {
		unsubs = append(unsubs, hub.Subscribe(topic, r.enqueue))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (r *RedisRelay) enqueue(ctx context.Context, event Event) {
	select {
	case r.queue <- event:
	default:
		r.logger.WarnContext(ctx, "relay buffer full, dropping event", "topic", event.Topic, "slot_id", event.Slot.SlotID)
	}
}

// Run publishes queued events until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-r.queue:
			r.publish(ctx, event)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode event", "topic", event.Topic, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.Channel(event.Topic), payload).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to relay event", "topic", event.Topic, "slot_id", event.Slot.SlotID, "error", err)
	}
}
