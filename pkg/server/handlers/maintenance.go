package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
)

// MaintenanceHandler handles retention and snapshot requests.
type MaintenanceHandler struct {
	client recall.Recall
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(client recall.Recall) *MaintenanceHandler {
	return &MaintenanceHandler{client: client}
}

// Sweep handles POST /api/v1/sweep.
func (h *MaintenanceHandler) Sweep(c *gin.Context) {
	res, err := h.client.Sweep(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type archiveRequest struct {
	Type          string `json:"type" binding:"required"`
	OlderThanDays int    `json:"older_than_days" binding:"required"`
}

// Archive handles POST /api/v1/archive.
func (h *MaintenanceHandler) Archive(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.client.Archive(c.Request.Context(), req.Type, req.OlderThanDays)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": n})
}

type snapshotRequest struct {
	Dir    string `json:"dir" binding:"required"`
	Format string `json:"format"`
}

// Export handles POST /api/v1/export.
func (h *MaintenanceHandler) Export(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.Export(c.Request.Context(), req.Dir, recall.SnapshotFormat(req.Format)); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dir": req.Dir})
}

// Import handles POST /api/v1/import.
func (h *MaintenanceHandler) Import(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.client.Import(c.Request.Context(), req.Dir, recall.SnapshotFormat(req.Format))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
