package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/toolsascode/lockstep/internal/api/http"
	"github.com/toolsascode/lockstep/internal/config"
	"github.com/toolsascode/lockstep/internal/loader"
	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/queue"
	"github.com/toolsascode/lockstep/internal/queuefactory"
	"github.com/toolsascode/lockstep/internal/storefactory"
	"github.com/toolsascode/lockstep/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.APIToken == "" && !cfg.Server.DevMode {
		logger.Fatal("LOCKSTEP_API_TOKEN is required outside dev mode")
	}

	logger.Info("Initializing Lockstep server...")

	ctx := context.Background()

	// Connect the store
	st, err := storefactory.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to connect store: %v", err)
	}
	defer st.Close()

	// Build the registry: compiled-in migrations plus any script files
	registry := migrate.NewRegistry()
	if err := migrations.Register(registry); err != nil {
		logger.Fatalf("Failed to register migrations: %v", err)
	}

	if cfg.MigrationsPath != "" {
		count, err := loader.New(cfg.MigrationsPath).Load(registry)
		if err != nil {
			logger.Fatalf("Failed to load migrations from %s: %v", cfg.MigrationsPath, err)
		}
		logger.Infof("Loaded %d migration(s) from %s", count, cfg.MigrationsPath)
	}

	engine := migrate.NewEngine(registry, st,
		migrate.WithLockLease(cfg.LockLease),
	)

	logger.Infof("Registry holds %d migration(s)", engine.GetNumberOfMigrations())

	// Initialize queue if enabled
	var producer queue.Producer
	if cfg.Queue.Enabled {
		q, err := queuefactory.NewQueue(cfg)
		if err != nil {
			logger.Fatalf("Failed to create queue: %v", err)
		}
		defer q.Close()

		producer = q
		logger.Info("Queue enabled - migrate commands will be queued for async execution")
	}

	// Initialize HTTP server
	router := gin.New()

	// Custom logger middleware that skips health check endpoints
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		// Skip logging for health check endpoints
		if param.Path == "/health" || param.Path == "/api/v1/health" {
			return ""
		}
		return fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %s\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
		)
	}))
	router.Use(gin.Recovery())

	// Add CORS middleware - must be before routes
	router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	httpHandler := httpapi.NewHandler(engine, producer, cfg.Server.DevMode)
	httpHandler.RegisterRoutes(router)

	// Add /health endpoint to prevent 404s (uses same handler as /api/v1/health)
	router.GET("/health", httpHandler.Health)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting HTTP server on port %s", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	logger.Info("Lockstep server started successfully")
	logger.Infof("HTTP API available at http://localhost:%s", cfg.Server.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
