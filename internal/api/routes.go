package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes on the given router
func SetupRoutes(router *gin.Engine, handler *Handler, hub *Hub) {
	v1 := router.Group("/api/v1")
	{
		// System endpoints
		v1.GET("/status", handler.GetStatus)
		v1.GET("/config", handler.GetConfig)
		v1.GET("/system", handler.GetSystem)

		// Target endpoints
		v1.GET("/targets", handler.GetTargets)
		v1.GET("/targets/:name", handler.GetTarget)
		v1.GET("/targets/:name/stats", handler.GetTargetStats)
		v1.GET("/targets/:name/live", handler.GetTargetLive)
		v1.GET("/targets/:name/history", handler.GetTargetHistory)

		// Heatmap endpoints; :name may carry a .png suffix
		v1.GET("/heatmap", handler.ListHeatmaps)
		v1.GET("/heatmap/:name", handler.GetHeatmap)
		v1.GET("/heatmap/:name/years", handler.GetHeatmapYears)

		if hub != nil {
			v1.GET("/ws", ServeWebSocket(hub))
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
}
