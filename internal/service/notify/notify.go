package notify

import (
	"context"
	"fmt"
	"time"
)

// Message to deliver out of band
// Admin messages go to the configured admin chat, others to ChatID
type Message struct {
	ChatID int64
	Admin  bool
	Text   string
}

// Sender delivers one message to the transport (telegram, mqtt)
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Returned by sender when transport throttles us
type RetryAfterError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// Sender that sends nothing. Used when notifications are off
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return nil }
