package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/config"
	"github.com/alphabizdigital/invoice-tracker/internal/middleware"
	"github.com/alphabizdigital/invoice-tracker/internal/repository"
	"github.com/alphabizdigital/invoice-tracker/internal/status"
	"github.com/alphabizdigital/invoice-tracker/internal/tracker"
	"github.com/alphabizdigital/invoice-tracker/internal/webhook"
	"github.com/alphabizdigital/invoice-tracker/internal/worker"
	"github.com/alphabizdigital/invoice-tracker/pkg/database"
	"github.com/alphabizdigital/invoice-tracker/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Local overrides (webhook secret, db path) live in .env during development
	gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice status tracker",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	eventRepo := repository.NewWebhookEventRepository(db.DB, logger)

	// Initialize core tracker
	invoiceTracker := tracker.New(invoiceRepo, logger)

	// Initialize HTTP handlers
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, logger)
	webhookHandler := webhook.NewHandler(verifier, invoiceTracker, eventRepo, logger)
	statusHandler := status.NewHandler(invoiceTracker, eventRepo, logger)

	// Webhook rate limiter
	limiter := middleware.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger)

	// Background workers
	workerManager := worker.NewManager(logger)
	workerManager.Register(worker.NewCleanupWorker(
		invoiceTracker,
		eventRepo,
		cfg.Cleanup.MaxAge,
		cfg.Cleanup.Interval,
		logger,
	))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := workerManager.StartAll(workerCtx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize HTTP router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())
	router.HandleMethodNotAllowed = true
	router.NoMethod(webhookHandler.MethodNotAllowed)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "invoice-tracker",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Callback endpoint for the external PDF workflow
	router.POST(cfg.Webhook.Path, limiter.Handler(), webhookHandler.Handle)

	// Status API
	api := router.Group("/api")
	{
		api.GET("/status/:invoice_number", statusHandler.Get)
		api.PATCH("/status/:invoice_number", statusHandler.Patch)
		api.POST("/status", statusHandler.Ensure)
		api.GET("/stats", statusHandler.Stats)
		api.GET("/webhook-events", statusHandler.ListEvents)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	workerManager.StopAll()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
