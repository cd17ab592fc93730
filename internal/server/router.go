package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ArtisanClarinets/eccb-backend/internal/handlers"
	"github.com/ArtisanClarinets/eccb-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	ReviewHandler  *handlers.ReviewHandler
	UploadHandler  *handlers.UploadHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Read-only review surface.
	api.GET("/review", cfg.ReviewHandler.List)
	api.GET("/review/:id/preview", cfg.ReviewHandler.Preview)
	api.GET("/review/:id/part-preview", cfg.ReviewHandler.PartPreview)

	// Mutations require the catalog edit capability.
	edit := api.Group("/")
	edit.Use(cfg.AuthMiddleware.RequireCatalogEdit())
	edit.POST("/uploads", cfg.UploadHandler.Create)
	edit.POST("/review/:id/approve", cfg.ReviewHandler.Approve)
	edit.POST("/review/:id/reject", cfg.ReviewHandler.Reject)
	edit.POST("/review/bulk-approve", cfg.ReviewHandler.BulkApprove)
	edit.POST("/second-pass", cfg.ReviewHandler.SecondPass)

	return router
}
