package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"conduit/internal/metrics"
)

// Workers bounds the number of requests a listener handles at once to n.
// Requests beyond the limit wait for a slot until their context ends, and
// are then answered with 503.
func Workers(listener string, n int) gin.HandlerFunc {
	if n < 1 {
		n = 1
	}
	sem := semaphore.NewWeighted(int64(n))
	busy := metrics.WorkersBusy.WithLabelValues(listener)

	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "server_busy",
			})
			return
		}
		busy.Inc()
		defer func() {
			busy.Dec()
			sem.Release(1)
		}()

		c.Next()
	}
}
