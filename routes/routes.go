package routes

import (
	"time"

	"stocktracker_backend/config"
	"stocktracker_backend/controllers"
	"stocktracker_backend/middleware"
	"stocktracker_backend/services/alerts"
	"stocktracker_backend/services/jobs"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"
	"stocktracker_backend/services/stream"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies carries the wired services the routes expose
type Dependencies struct {
	DB          *gorm.DB
	Market      *providers.MarketDataService
	PriceStore  *prices.Store
	Evaluator   *alerts.Evaluator
	TickRunner  *jobs.TickRunner
	Maintenance *jobs.Maintenance
	Hub         *stream.Hub
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, deps *Dependencies) {
	stockController := controllers.NewStockController(deps.DB, deps.Market, deps.PriceStore)
	alertController := controllers.NewAlertController(deps.DB, deps.Evaluator)
	jobsController := controllers.NewJobsController(deps.TickRunner, deps.Maintenance)

	// Tick endpoint admission control: 4 calls per minute per caller
	tickLimiter := middleware.NewRateLimiter(4, time.Minute)

	// Job endpoints for the external cron trigger
	jobRoutes := router.Group("/jobs")
	jobRoutes.Use(middleware.CronAuthMiddleware(cfg.CronSecret))
	{
		jobRoutes.GET("/alerts-tick", middleware.RateLimitMiddleware(tickLimiter), jobsController.AlertsTick)
		jobRoutes.GET("/maintenance/fix-orphans", jobsController.FixOrphans)
	}

	// API v1 group
	api := router.Group("/api/v1")
	{
		stocks := api.Group("/stocks")
		{
			stocks.GET("/search", stockController.SearchStocks)
			stocks.GET("/:symbol/quote", stockController.GetQuote)
			stocks.GET("/:symbol/history", stockController.GetHistory)
			stocks.GET("/:symbol/prices", stockController.GetStoredPrices)
		}

		alertRoutes := api.Group("/alerts")
		alertRoutes.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			alertRoutes.GET("", alertController.GetAlerts)
			alertRoutes.POST("", alertController.CreateAlert)
			alertRoutes.DELETE("/:id", alertController.DeleteAlert)
			alertRoutes.POST("/check", alertController.CheckNow)
		}
	}

	// Realtime price/alert stream
	if deps.Hub != nil {
		router.GET("/ws/prices", func(c *gin.Context) {
			deps.Hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
