package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"conduit/internal/infrastructure/database"
	"conduit/internal/logger"
)

// Database is the part of the connection pool the health checks need.
type Database interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db      Database
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Database, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// HealthResponse represents the response for health check endpoints.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Schema   *SchemaStatus     `json:"schema,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

// SchemaStatus reports the applied migration version.
type SchemaStatus struct {
	Version uint `json:"version"`
	Latest  uint `json:"latest"`
	Dirty   bool `json:"dirty"`
}

// Health handles GET /health - comprehensive health check.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	services := map[string]string{
		"database": "healthy",
		"schema":   "healthy",
	}

	if err := h.db.Ping(ctx); err != nil {
		services["database"] = "unhealthy"
		services["schema"] = "unknown"
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Services: services,
		})
		return
	}

	version, dirty, err := database.SchemaVersion(ctx, h.db)
	if err != nil {
		services["schema"] = "unknown"
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Services: services,
		})
		return
	}

	schema := &SchemaStatus{Version: version, Latest: database.LatestVersion(), Dirty: dirty}
	status, code := "healthy", http.StatusOK
	if dirty || version != schema.Latest {
		services["schema"] = "outdated"
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:   status,
		Version:  h.version,
		Schema:   schema,
		Services: services,
	})
}

// Ready handles GET /ready - readiness probe for Kubernetes. The instance is
// ready when the database answers and the schema is clean and current.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}

	if err := database.CheckSchema(ctx, h.db); err != nil {
		logger.WarnContext(ctx, "Schema not ready", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles GET /live - liveness probe for Kubernetes.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
