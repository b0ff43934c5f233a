package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"conduit/internal/logger"
	"conduit/internal/metrics"
)

// CapabilitySource resolves capability flags. *config.Config and
// *config.Store implement it.
type CapabilitySource interface {
	Capability(resource, name string) bool
}

// RequireCapability rejects the request with 403 unless the capability is
// enabled in the deployment configuration.
func RequireCapability(src CapabilitySource, resource, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := src
		if cfg, ok := CurrentConfig(c); ok {
			source = cfg
		}
		if source.Capability(resource, name) {
			c.Next()
			return
		}

		metrics.CapabilityDeniedTotal.WithLabelValues(resource, name).Inc()
		logger.WithRequestID(GetRequestID(c)).DebugContext(c.Request.Context(), "Capability disabled",
			"resource", resource, "capability", name)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":      "capability_disabled",
			"resource":   resource,
			"capability": name,
		})
	}
}
