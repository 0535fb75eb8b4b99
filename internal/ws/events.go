package ws

import (
	"context"
	"time"

	"social-client/internal/observability"
)

const routingKey = "ws_events.chats"

func (c *Conn) publish(ctx context.Context, event, reason string) {
	duration := int64(0)
	if event != "ws_connect" {
		duration = time.Since(c.info.ConnectedAt).Milliseconds()
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "chat",
			"url":         c.info.URL,
			"event":       event,
			"conn_id":     c.info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": c.info.UserID,
		},
	}

	headers := observability.BuildHeaders(c.info.RequestID, c.info.TraceID)
	if err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers); err != nil {
		c.log.Debug("ws event publish failed", "event", event, "error", err)
	}
	observability.IncWSEvent("lifecycle", event)
}
