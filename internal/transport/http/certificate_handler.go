package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/training-portal/internal/application/usecase"
	"github.com/waste3d/training-portal/internal/domain"
)

type CertificateHandler struct {
	issuer *usecase.CertificateIssuer
}

func NewCertificateHandler(issuer *usecase.CertificateIssuer) *CertificateHandler {
	return &CertificateHandler{issuer: issuer}
}

// GET /api/v1/certificate
func (h *CertificateHandler) Get(c *gin.Context) {
	uid := userID(c)
	cert, err := h.issuer.GetUserCertificate(c, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if cert != nil {
		c.JSON(http.StatusOK, gin.H{
			"certificate": cert,
			"expired":     cert.Expired(time.Now()),
			"eligible":    true,
			"remaining":   0,
		})
		return
	}

	eligible, remaining, err := h.issuer.Eligibility(c, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"certificate": nil,
		"eligible":    eligible,
		"remaining":   remaining,
	})
}

// POST /api/v1/certificate/generate
func (h *CertificateHandler) Generate(c *gin.Context) {
	res, err := h.issuer.CheckAndIssue(c, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Status == domain.IssueIssued {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
