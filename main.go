package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stocktracker_backend/config"
	"stocktracker_backend/models"
	"stocktracker_backend/routes"
	"stocktracker_backend/scheduler"
	"stocktracker_backend/services/alerts"
	"stocktracker_backend/services/archive"
	"stocktracker_backend/services/credentials"
	"stocktracker_backend/services/jobs"
	"stocktracker_backend/services/notify"
	"stocktracker_backend/services/prices"
	"stocktracker_backend/services/providers"
	"stocktracker_backend/services/stream"

	"github.com/gin-gonic/gin"
)

// dbInitialized tracks whether database has been successfully initialized
// This global variable is used for thread-safe access across goroutines to allow
// the /ready health endpoint to dynamically check database status
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Stock Tracker Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; database is initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts suited for container platforms
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and setup routes in background
	var jobScheduler *scheduler.Scheduler
	var hub *stream.Hub
	var snapshotArchive *archive.SnapshotArchive
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Wire the price ingestion and alert engine
		pool := credentials.NewPool(db, credentials.PoolOptions{
			Secret:              cfg.CredentialSecret,
			RequestLimit:        cfg.ProviderRequestLimit,
			DailyRequestLimit:   cfg.ProviderDailyLimit,
			AutoRegisterEnabled: cfg.AutoRegisterEnabled,
			DenyList:            cfg.AutoRegisterDenyList,
			SignupURL:           cfg.CredentialSignupURL,
		})
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.SeedSharedPool(seedCtx, models.ProviderAlphaVantage, cfg.AlphaVantageKeys); err != nil {
			log.Printf("Warning: Failed to seed credential pool: %v", err)
		}
		cancelSeed()

		market := providers.NewMarketDataService(
			providers.NewAlphaVantage(pool),
			providers.NewYahoo(),
		)

		priceStore := prices.NewStore(db)

		hub = stream.NewHub()
		priceStore.AddSink(hub)

		snapshotArchive = archive.NewSnapshotArchive(cfg.MongoURI)
		if snapshotArchive.IsConnected() {
			priceStore.AddSink(snapshotArchive)
		}

		evaluator := alerts.NewEvaluator(db, priceStore, notify.LogNotifier{})

		tickRunner := jobs.NewTickRunner(db, market, priceStore, evaluator, cfg.TickPacingDelay)
		tickRunner.SetAlertSink(hub)
		maintenance := jobs.NewMaintenance(db)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, cfg, &routes.Dependencies{
			DB:          db,
			Market:      market,
			PriceStore:  priceStore,
			Evaluator:   evaluator,
			TickRunner:  tickRunner,
			Maintenance: maintenance,
			Hub:         hub,
		})

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(tickRunner, pool, cfg.AlertCheckInterval)
		go jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if snapshotArchive != nil {
			snapshotArchive.Close()
		}
	})
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateStockModels(db); err != nil {
		return err
	}
	if err := models.MigrateUserModels(db); err != nil {
		return err
	}
	if err := models.MigrateAlertModels(db); err != nil {
		return err
	}
	if err := models.MigrateCredentialModels(db); err != nil {
		return err
	}

	return nil
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stock Tracker Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		// Check database connection
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe - can be used for initial health check
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler and streaming first
	stopBackground()

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
