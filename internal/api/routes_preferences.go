package api

import (
	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/internal/handlers"
)

func registerPreferenceRoutes(api *gin.RouterGroup, handler *handlers.PreferenceHandler) {
	group := api.Group("/preferences")
	{
		group.PUT("/bulk", handler.BulkPut)
		group.GET("/:type", handler.GetEffective)
		group.PUT("/:type", handler.Put)
		group.PUT("/:type/default", handler.PutTenantDefault)
	}
}
