package observability

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDFromRequest returns X-Request-Id or a fresh id.
func RequestIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}
