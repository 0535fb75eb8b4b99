package chat

import (
	"context"

	"social-client/internal/models"
	"social-client/internal/ws"
)

// API is the REST side of a conversation.
type API interface {
	GetUser(ctx context.Context, userID models.ID) (models.User, error)
	GetHistory(ctx context.Context, targetUserID models.ID) ([]models.RawMessage, error)
	EditMessage(ctx context.Context, messageID models.ID, text string) error
	SoftDeleteMessage(ctx context.Context, messageID models.ID) error
	RemoveMessage(ctx context.Context, messageID models.ID) error
}

// Channel is an open realtime connection.
type Channel interface {
	Emit(ctx context.Context, event string, data any) error
	EmitWithAck(ctx context.Context, event string, data any) (<-chan ws.Ack, error)
	Events() <-chan ws.Event
	Close() error
}

// Dialer opens the realtime channel for a session.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}

// Auditor records mutation failures. *telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Emit(ctx context.Context, level, text, subject string, userID *string)
}
