// Package notify delivers best-effort chat messages to players.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends one message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier", "channel", "log")}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient, message string) error {
	n.logger.InfoContext(ctx, "notification", "recipient", recipient, "message", message)
	return nil
}
