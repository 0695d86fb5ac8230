package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

type CatalogHandler struct {
	catalog *repository.CatalogRepository
}

func NewCatalogHandler(catalog *repository.CatalogRepository) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GET /api/v1/modules
func (h *CatalogHandler) ListModules(c *gin.Context) {
	res, err := h.catalog.ListActiveModules(c)
	if err != nil {
		respondError(c, err)
		return
	}

	total := 0
	for _, m := range res.Items {
		total += m.DurationMinutes
	}
	c.JSON(http.StatusOK, gin.H{
		"modules":        res.Items,
		"count":          len(res.Items),
		"total_duration": total,
		"strategy":       res.Strategy,
	})
}

// GET /api/v1/modules/:id
func (h *CatalogHandler) GetModule(c *gin.Context) {
	m, err := h.catalog.GetModule(c, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /api/v1/videos?limit=
func (h *CatalogHandler) ListVideos(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	res, err := h.catalog.ListActiveVideos(c, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"videos":   res.Items,
		"count":    len(res.Items),
		"strategy": res.Strategy,
	})
}

// GET /api/v1/debug/catalog
func (h *CatalogHandler) Diagnose(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"collections": h.catalog.Diagnose(c)})
}
