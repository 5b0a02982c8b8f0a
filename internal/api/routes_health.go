package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/internal/app"
	"github.com/darasahq/darasa/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		return
	}

	r.GET("/health", handlers.Health())
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "health checks disabled"})
}
