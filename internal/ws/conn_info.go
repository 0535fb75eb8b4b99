package ws

import "time"

// ConnInfo identifies one realtime channel in telemetry events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	URL         string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
