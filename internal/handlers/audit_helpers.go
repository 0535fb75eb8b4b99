package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-client/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

// userIDFromContext is the local user the client runs as, if known.
func userIDFromContext(c *gin.Context) *string {
	if id := c.GetString(localUserKey); id != "" {
		return &id
	}
	return nil
}

const localUserKey = "local_user_id"

// LocalUser stamps requests with the id of the user the client runs as.
func LocalUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set(localUserKey, id)
		}
		c.Next()
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
