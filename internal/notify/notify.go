package notify

import (
	"context"
	"time"
)

// MessageSentEvent is the payload published when a message is stored.
type MessageSentEvent struct {
	ID           int64     `json:"id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	SentAt       time.Time `json:"sent_at"`
}

// Notifier delivers message-sent events to an external broker so that
// out-of-band channels (SMS gateways, push workers) can pick them up.
// Delivery is best-effort; callers must not fail the originating request
// on a publish error.
type Notifier interface {
	MessageSent(ctx context.Context, event MessageSentEvent) error
	Close() error
}

// Noop is the Notifier used when no backend is configured.
type Noop struct{}

func (Noop) MessageSent(ctx context.Context, event MessageSentEvent) error { return nil }

func (Noop) Close() error { return nil }
