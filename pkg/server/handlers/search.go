package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/types"
)

// SearchHandler handles search, linking, and maintenance requests.
type SearchHandler struct {
	client recall.Recall
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(client recall.Recall) *SearchHandler {
	return &SearchHandler{client: client}
}

// Search handles POST /api/v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var q types.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.client.Search(c.Request.Context(), &q)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateLink handles POST /api/v1/links.
func (h *SearchHandler) CreateLink(c *gin.Context) {
	var rel types.Relationship
	if err := c.ShouldBindJSON(&rel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.Link(c.Request.Context(), rel); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// DeleteLink handles DELETE /api/v1/links.
func (h *SearchHandler) DeleteLink(c *gin.Context) {
	var rel types.Relationship
	if err := c.ShouldBindJSON(&rel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.client.Unlink(c.Request.Context(), rel.SourceID, rel.TargetID, rel.Type, rel.Bidirectional)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Orphans handles GET /api/v1/orphans.
func (h *SearchHandler) Orphans(c *gin.Context) {
	orphans, err := h.client.Orphans(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, orphans)
}
