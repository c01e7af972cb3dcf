package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"productimport/internal/logger"
)

// Logger writes one line per request and puts a request-scoped logger into
// the request context.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLog := log.With("method", c.Request.Method, "path", path)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		if path == "/health" || path == "/metrics" {
			return
		}
		status := c.Writer.Status()
		l := reqLog.With("status", status, "latency", time.Since(start).String(), "ip", c.ClientIP())
		if shop := Shop(c); shop != "" {
			l = l.With("shop", shop)
		}
		switch {
		case status >= 500:
			l.Error("%s %s", c.Request.Method, path)
		case status >= 400:
			l.Warn("%s %s", c.Request.Method, path)
		default:
			l.Info("%s %s", c.Request.Method, path)
		}
	}
}
