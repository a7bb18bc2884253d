// README: Request logging and request counting middleware.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"velo/internal/logger"
	"velo/internal/metrics"
)

// Logging writes one line per request and counts it by route and status.
// Errors attached with c.Error are logged with the request.
func Logging(log logger.ILogger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Duration("took", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
