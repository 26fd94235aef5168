package handlers

import (
	"net/http"
	"time"
)

// ClientCounter reports the number of connected broadcast sessions.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	hub     ClientCounter
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(hub ClientCounter) *HealthHandler {
	return &HealthHandler{hub: hub, started: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"clientsConnected": h.hub.ClientCount(),
		"uptime":           time.Since(h.started).Seconds(),
	})
}
