package routes

import (
	"coingecko_etl/controllers"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the status routes. There are no endpoints that start a
// run; the schedule is the only way the pipeline is invoked.
func SetupRoutes(router *gin.Engine, status *controllers.StatusController) {
	router.GET("/health", status.Health)
	router.GET("/ready", status.Ready)

	// API v1 group
	api := router.Group("/api/v1")
	{
		runs := api.Group("/runs")
		{
			runs.GET("", status.GetRuns)
			runs.GET("/last", status.GetLastRun)
		}

		api.GET("/thresholds", status.GetThresholds)
	}
}
