package middleware

import (
	"time"

	"prokipsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		l := log.With("request_id", c.GetString(RequestIDKey))
		switch {
		case status >= 500:
			l.Error("%s %s %d %s %s", c.Request.Method, path, status, time.Since(start), c.ClientIP())
		case path == "/health" || path == "/metrics":
			l.Debug("%s %s %d %s %s", c.Request.Method, path, status, time.Since(start), c.ClientIP())
		default:
			l.Info("%s %s %d %s %s", c.Request.Method, path, status, time.Since(start), c.ClientIP())
		}
	}
}
