package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/waste3d/training-portal/internal/middleware"
)

type Handlers struct {
	Catalog     *CatalogHandler
	Progress    *ProgressHandler
	Certificate *CertificateHandler
	Profile     *ProfileHandler
	Health      *HealthHandler
}

func NewRouter(h Handlers, limiter *middleware.RateLimiter, tokens middleware.TokenValidator, allowedOrigins []string) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/healthz", h.Health.Check)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(tokens))
	{
		api.GET("/modules", h.Catalog.ListModules)
		api.GET("/modules/:id", h.Catalog.GetModule)
		api.GET("/videos", h.Catalog.ListVideos)
		api.GET("/debug/catalog", h.Catalog.Diagnose)

		progress := api.Group("/progress")
		{
			progress.GET("", h.Progress.List)
			progress.GET("/:moduleId", h.Progress.GetOne)
			progress.POST("/:moduleId/advance", h.Progress.Advance)
			progress.POST("/:moduleId/complete", h.Progress.Complete)
		}

		certificate := api.Group("/certificate")
		{
			certificate.GET("", h.Certificate.Get)
			certificate.POST("/generate", limiter.Limit("certificate", 5, 1*time.Minute), h.Certificate.Generate)
		}

		api.POST("/profile", h.Profile.Create)
		api.GET("/profile", h.Profile.Get)
	}

	return r
}
