package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lma-docpulse/internal/api_gateway/handler"
	"github.com/lma-docpulse/internal/api_gateway/middleware"
)

const healthPath = "/health"

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	documentHandler *handler.DocumentHandler,
	dashboardHandler *handler.DashboardHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, healthPath))
	r.Use(middleware.CorrelationID())

	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.POST("/analyze", documentHandler.AnalyzeReady)
			documents.GET("/:id", documentHandler.GetByID)
			documents.POST("/:id/analyze", documentHandler.Analyze)
			documents.POST("/:id/confirm", documentHandler.Confirm)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", dashboardHandler.ListAlerts)
			alerts.POST("", dashboardHandler.CreateAlert)
		}

		v1.GET("/metrics", dashboardHandler.Metrics)
		v1.GET("/portfolio", dashboardHandler.Portfolio)
	}

	r.GET(healthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
