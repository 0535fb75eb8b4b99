package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-client/internal/chat"
)

const debugAuditSubject = "debug.audit"

// RegisterDebugRoutes wires debug-only endpoints. GET /debug/audit-test
// pushes one record through the audit pipeline so the broker side can be
// checked end to end.
func RegisterDebugRoutes(router gin.IRoutes, emitter chat.Auditor, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			errorJSON(c, http.StatusServiceUnavailable, "audit emitter not configured")
			return
		}
		requestID := requestIDFromContext(c)
		level := c.DefaultQuery("level", "info")
		emitter.Emit(c.Request.Context(), level, "audit test request_id="+requestID, debugAuditSubject, userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID})
	})
}
