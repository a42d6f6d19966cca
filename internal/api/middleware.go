package api

import (
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestId", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger writes one line per request. Health and metrics checks are
// logged at debug.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"clientIp":   c.ClientIP(),
			"requestId":  c.GetString("requestId"),
		}
		switch {
		case c.FullPath() == "/health" || c.FullPath() == "/ready" || c.FullPath() == "/metrics":
			log.Debug("request", fields)
		case c.Writer.Status() >= 500:
			log.Error("request", fields)
		default:
			log.Info("request", fields)
		}
	}
}
