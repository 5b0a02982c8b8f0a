package api

import (
	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.POST("", handler.Submit)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.POST("/:id/outcome", handler.ReportOutcome)
		group.POST("/:id/read", handler.MarkRead)
		group.POST("/:id/cancel", handler.Cancel)
	}
}
