package middleware

import (
	"github.com/gin-gonic/gin"

	"conduit/internal/config"
)

// SnapshotKey is the context key of the configuration pinned for a request.
const SnapshotKey = "config_snapshot"

// Snapshot pins the store's current configuration for the rest of the
// request, so a concurrent reload cannot change policies half way through.
func Snapshot(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(SnapshotKey, store.Current())
		c.Next()
	}
}

// CurrentConfig returns the configuration pinned by Snapshot.
func CurrentConfig(c *gin.Context) (*config.Config, bool) {
	v, ok := c.Get(SnapshotKey)
	if !ok {
		return nil, false
	}
	cfg, ok := v.(*config.Config)
	return cfg, ok && cfg != nil
}
