package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DispatcherConfig bounds the dispatcher's resources.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type delivery struct {
	recipient string
	message   string
}

// Dispatcher queues messages and delivers them on worker goroutines with a
// per-message timeout. Enqueue never blocks; a full queue drops the message.
// Delivery errors are logged and discarded.
type Dispatcher struct {
	notifier Notifier
	queue    chan delivery
	cfg      DispatcherConfig
	logger   *slog.Logger

	mu      sync.Mutex
	dropped int
}

// NewDispatcher constructs a dispatcher around notifier.
func NewDispatcher(notifier Notifier, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan delivery, cfg.QueueSize),
		cfg:      cfg,
		logger:   logger.With("component", "notify_dispatcher"),
	}
}

// Enqueue schedules a message for delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, recipient, message string) {
	select {
	case d.queue <- delivery{recipient: recipient, message: message}:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "notification queue full, dropping message", "recipient", recipient)
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers queued messages until ctx is cancelled, then drains what is
// left in the queue with a fresh per-message timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case item := <-d.queue:
					d.deliver(context.WithoutCancel(gctx), item)
				}
			}
		})
	}
	err := g.Wait()

	for {
		select {
		case item := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), item)
		default:
			return err
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, item delivery) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			d.logger.ErrorContext(ctx, "notifier panicked", "recipient", item.recipient, "panic", p)
		}
	}()

	if err := d.notifier.Notify(ctx, item.recipient, item.message); err != nil {
		d.logger.WarnContext(ctx, "notification delivery failed", "recipient", item.recipient, "error", err)
	}
}
