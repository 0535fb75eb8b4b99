package telemetry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"social-client/internal/logger"
)

const auditSchemaVersion = 2

// Publisher is the broker side of the audit emitter.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter records failed user-visible mutations (chat sends, edits,
// deletes) so they can be investigated after the optimistic UI moved on.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
	log         *slog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	Subject       string       `json:"subject"`
	UserID        *string      `json:"user_id,omitempty"`
	TraceID       string       `json:"trace_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *slog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
		log:         logger.Component(log, "audit"),
	}
}

// Emit publishes one audit record and mirrors it to the local log at the
// same level. A nil emitter is a no-op. Subjects look like "chat.edit"; the
// part before the first dot is appended to the routing key.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, subject string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	lvl := logger.ParseLevel(level)
	e.log.Log(ctx, lvl, text, "subject", subject)

	envelope := AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Subject:       subject,
		UserID:        userID,
		Payload: AuditPayload{
			Level: lvl.String(),
			Text:  text,
		},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, e.key(subject), envelope); err != nil {
		e.log.Warn("audit publish failed", "subject", subject, "error", err)
	}
}

func (e *AuditEmitter) key(subject string) string {
	area, _, _ := strings.Cut(subject, ".")
	if area == "" {
		return e.routingKey
	}
	return e.routingKey + "." + area
}
