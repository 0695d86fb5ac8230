package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/training-portal/internal/application/usecase"
	"github.com/waste3d/training-portal/internal/domain"
)

// defaultInteractionMinutes is credited per interaction when the client does
// not report time spent.
const defaultInteractionMinutes = 5

type ProgressHandler struct {
	uc *usecase.ProgressUseCase
}

func NewProgressHandler(uc *usecase.ProgressUseCase) *ProgressHandler {
	return &ProgressHandler{uc: uc}
}

type advanceReq struct {
	ProgressPercentage float64 `json:"progress_percentage" binding:"gte=0,lte=100"`
	TimeSpentMinutes   *int    `json:"time_spent_minutes" binding:"omitempty,gte=0"`
}

type completeReq struct {
	TimeSpentMinutes *int `json:"time_spent_minutes" binding:"omitempty,gte=0"`
}

func spent(v *int) int {
	if v == nil {
		return defaultInteractionMinutes
	}
	return *v
}

// GET /api/v1/progress
func (h *ProgressHandler) List(c *gin.Context) {
	records, err := h.uc.GetUserProgress(c, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": records})
}

// GET /api/v1/progress/:moduleId
func (h *ProgressHandler) GetOne(c *gin.Context) {
	p, err := h.uc.GetModuleProgress(c, userID(c), c.Param("moduleId"))
	if err != nil {
		respondError(c, err)
		return
	}
	// a module never opened is not an error
	c.JSON(http.StatusOK, gin.H{"progress": p})
}

// POST /api/v1/progress/:moduleId/advance
func (h *ProgressHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.uc.Advance(c, userID(c), c.Param("moduleId"), req.ProgressPercentage, spent(req.TimeSpentMinutes))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/v1/progress/:moduleId/complete
func (h *ProgressHandler) Complete(c *gin.Context) {
	var req completeReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.uc.Complete(c, userID(c), c.Param("moduleId"), spent(req.TimeSpentMinutes))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == domain.OutcomeCertificateIssued {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
