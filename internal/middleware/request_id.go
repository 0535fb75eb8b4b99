package middleware

import (
	"github.com/gin-gonic/gin"

	"social-client/internal/observability"
)

const RequestIDKey = "request_id"

// RequestID tags every request with X-Request-Id, generating one if absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		c.Set(RequestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
