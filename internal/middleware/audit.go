package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
)

// AuditRecorder accepts audit entries for asynchronous persistence.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// AuditContext attaches the caller's address and user agent to the request context so services
// can stamp their audit entries.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithAuditMeta(c.Request.Context(), service.AuditMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Audit records an entry after successful requests to read-only endpoints that services do
// not audit themselves.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := models.AuditLog{Action: action, Resource: resource}
		if claims := Claims(c); claims != nil {
			entry.ActorID = &claims.UserID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.Payload, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"query":   c.Request.URL.RawQuery,
			"latency": time.Since(start).Milliseconds(),
		})
		recorder.Record(c.Request.Context(), entry)
	}
}
