// Package middleware provides HTTP middleware for the Gin framework: request
// IDs, metrics, access logs, and enforcement of the resolved capability and
// CORS policies.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"conduit/internal/metrics"
)

// Metrics returns a Gin middleware that records Prometheus metrics for HTTP requests.
// It tracks:
// - Total requests by listener, method, path, and status code
// - Request duration histogram
// - Requests currently in flight
func Metrics(listener string) gin.HandlerFunc {
	inFlight := metrics.HTTPRequestsInFlight.WithLabelValues(listener)

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-referential metrics
		if c.FullPath() == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()

		// Use a fixed label for unmatched routes
		if path == "" {
			path = "unmatched"
		}

		metrics.HTTPRequestsTotal.WithLabelValues(listener, c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(listener, c.Request.Method, path).Observe(duration)
	}
}
