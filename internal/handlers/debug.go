package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		var actor *string
		if identity, ok := middleware.IdentityFromContext(c); ok && identity.Email != "" {
			actor = &identity.Email
		}

		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestID, actor)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
