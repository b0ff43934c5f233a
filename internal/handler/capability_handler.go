package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"conduit/internal/capability"
	"conduit/internal/config"
	"conduit/internal/middleware"
)

// CapabilityHandler reports the capabilities enabled for one listener.
type CapabilityHandler struct {
	listener string
	store    *config.Store
}

// NewCapabilityHandler creates a CapabilityHandler for the named listener.
func NewCapabilityHandler(listener string, store *config.Store) *CapabilityHandler {
	return &CapabilityHandler{listener: listener, store: store}
}

// CapabilitiesResponse is the body of GET /api/capabilities.
type CapabilitiesResponse struct {
	Listener     string            `json:"listener"`
	Services     []string          `json:"services"`
	Capabilities []capability.Flag `json:"capabilities"`
}

// List handles GET /api/capabilities. Only capabilities of resource types
// served by the listener are listed.
func (h *CapabilityHandler) List(c *gin.Context) {
	cfg, ok := middleware.CurrentConfig(c)
	if !ok {
		cfg = h.store.Current()
	}

	l, ok := cfg.Listener(h.listener)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "listener_not_configured"})
		return
	}

	flags := cfg.Capabilities.For(l.Services...)
	if flags == nil {
		flags = []capability.Flag{}
	}
	c.JSON(http.StatusOK, CapabilitiesResponse{
		Listener:     h.listener,
		Services:     append([]string(nil), l.Services...),
		Capabilities: flags,
	})
}
