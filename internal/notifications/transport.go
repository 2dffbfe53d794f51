package notifications

import (
	"context"

	"contract-backend/internal/shared/telemetry"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers a message. Implementations must honor ctx cancellation.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg Message) error

func (f TransportFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogTransport writes messages to the log instead of sending them. Used when no SMTP relay is configured.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("notification.logged", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"bytes":   len(msg.Body),
	})
	return nil
}
