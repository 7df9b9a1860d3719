package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/graph"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// RecordsHandler handles record CRUD and per-record lookups.
type RecordsHandler struct {
	client recall.Recall
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(client recall.Recall) *RecordsHandler {
	return &RecordsHandler{client: client}
}

// Create handles POST /api/v1/records.
func (h *RecordsHandler) Create(c *gin.Context) {
	var rec types.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stored, err := h.client.Store(c.Request.Context(), &rec)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// Get handles GET /api/v1/records/:id.
func (h *RecordsHandler) Get(c *gin.Context) {
	rec, err := h.client.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// patchRequest is the JSON shape of a partial update.
type patchRequest struct {
	Content       *string                      `json:"content"`
	Fields        map[string]*types.FieldValue `json:"fields"`
	AddFiles      []string                     `json:"add_files"`
	RemoveFiles   []string                     `json:"remove_files"`
	Archived      *bool                        `json:"archived"`
	ExpiresAt     *time.Time                   `json:"expires_at"`
	ClearExpires  bool                         `json:"clear_expires"`
	ExpectVersion *uint64                      `json:"expect_version"`
}

func (p *patchRequest) spec() *store.PatchSpec {
	return &store.PatchSpec{
		Content:       p.Content,
		Fields:        p.Fields,
		AddFiles:      p.AddFiles,
		RemoveFiles:   p.RemoveFiles,
		Archived:      p.Archived,
		ExpiresAt:     p.ExpiresAt,
		ClearExpires:  p.ClearExpires,
		ExpectVersion: p.ExpectVersion,
	}
}

// Update handles PATCH /api/v1/records/:id.
func (h *RecordsHandler) Update(c *gin.Context) {
	var patch patchRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.client.Update(c.Request.Context(), c.Param("id"), patch.spec())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/records/:id.
func (h *RecordsHandler) Delete(c *gin.Context) {
	if err := h.client.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Related handles GET /api/v1/records/:id/related. Depth comes from the
// "depth" query parameter, edge type filters from repeated "type"
// parameters, and "orphans=true" pulls in unlinked records as well.
func (h *RecordsHandler) Related(c *gin.Context) {
	var opts graph.Options
	if raw := c.Query("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		opts.MaxDepth = depth
	}
	opts.RelationshipTypes = c.QueryArray("type")
	opts.IncludeOrphans = c.Query("orphans") == "true"

	nb, err := h.client.RelatedTo(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, nb)
}

// Quality handles GET /api/v1/records/:id/quality.
func (h *RecordsHandler) Quality(c *gin.Context) {
	report, err := h.client.AssessQuality(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
