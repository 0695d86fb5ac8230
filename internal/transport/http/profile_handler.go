package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

type ProfileHandler struct {
	profiles *repository.ProfileRepository
}

func NewProfileHandler(profiles *repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type profileReq struct {
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
	Company     string `json:"company"`
	Role        string `json:"role"`
}

// POST /api/v1/profile
func (h *ProfileHandler) Create(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &domain.UserProfile{
		ID:          userID(c),
		Email:       req.Email,
		FullName:    req.FullName,
		DisplayName: req.DisplayName,
		Company:     req.Company,
		Role:        req.Role,
	}
	if err := h.profiles.Create(c, p); err != nil {
		respondError(c, err)
		return
	}

	stored, err := h.profiles.GetByID(c, p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// GET /api/v1/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profiles.GetByID(c, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
