package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nicolovejoy/housing-data-v1/internal/ingest"
	"github.com/nicolovejoy/housing-data-v1/internal/query"
)

func SetupRoutes(router *gin.Engine, engine *query.Engine, manager *ingest.Manager) {
	handler := NewHandler(engine, manager, nil)

	api := router.Group("/api")
	{
		api.GET("/pivot", handler.GetPivot)
		api.GET("/areas", handler.GetAreas)
		api.GET("/stats", handler.GetStats)
		api.POST("/reload", handler.TriggerReload)
		api.GET("/reload", handler.ListReloadJobs)
		api.GET("/reload/:id", handler.GetReloadJob)
	}
}
