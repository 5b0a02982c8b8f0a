package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/pkg/metrics"
)

// Metrics observes per-route request latency. The label uses the route
// template rather than the raw URL so instance ids do not explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
