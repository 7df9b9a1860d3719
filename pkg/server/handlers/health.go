package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/types"
)

// HealthHandler handles health and probe requests.
type HealthHandler struct {
	client  recall.Recall
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(client recall.Recall) *HealthHandler {
	return &HealthHandler{client: client, started: time.Now()}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// LivenessCheck handles GET /live. It only reports that the process is up.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ReadinessCheck handles GET /ready. It probes the record store with a
// lookup that is expected to miss; any error other than not-found means the
// store is not serving.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	_, err := h.client.Get(c.Request.Context(), "readiness-probe")
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
