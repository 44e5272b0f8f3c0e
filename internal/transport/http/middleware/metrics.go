package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"companion-ai/internal/metrics"
)

// Metrics records request counts and latency by route template, which keeps
// label cardinality bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := routePath(c)
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
