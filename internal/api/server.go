package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"prokipsync/internal/api/handlers"
	"prokipsync/internal/api/middleware"
	"prokipsync/internal/config"
	"prokipsync/internal/database"
	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
	"prokipsync/internal/services/reconcile"
	"prokipsync/internal/worker/processors"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Dependencies are the services the HTTP layer drives.
type Dependencies struct {
	Sync *reconcile.Service
	// Publisher is optional; without it webhooks are processed inline.
	Publisher events.Publisher
	// Scheduler is optional; without it POST /api/v1/sync/run is unavailable.
	Scheduler handlers.CycleRunner
}

type Server struct {
	config  *config.Config
	logger  *logger.Logger
	db      *database.Database
	router  *gin.Engine
	handler http.Handler
	server  *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(db.DB, logger)
	connectionHandler := handlers.NewConnectionHandler(db.DB, deps.Sync, logger)
	prokipHandler := handlers.NewProkipConfigHandler(db.DB, deps.Sync, logger)
	syncHandler := handlers.NewSyncHandler(deps.Sync, deps.Scheduler, logger)
	syncErrorHandler := handlers.NewSyncErrorHandler(db.DB, logger)
	webhookHandler := handlers.NewWebhookHandler(db.DB, deps.Publisher,
		processors.NewEventProcessor(db.DB, deps.Sync, logger), logger)

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Users
		users := v1.Group("/users")
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.POST("", userHandler.Create)
		}

		// Store connections
		connections := v1.Group("/connections")
		{
			connections.GET("", connectionHandler.List)
			connections.GET("/:id", connectionHandler.Get)
			connections.POST("", connectionHandler.Create)
			connections.PUT("/:id", connectionHandler.Update)
			connections.DELETE("/:id", connectionHandler.Delete)
			connections.POST("/:id/test", connectionHandler.Test)
			connections.GET("/:id/sales-logs", connectionHandler.SalesLogs)
			connections.GET("/:id/inventory", connectionHandler.Inventory)
			connections.GET("/:id/errors", connectionHandler.Errors)

			connections.POST("/:id/sync/orders", syncHandler.SyncOrders)
			connections.POST("/:id/sync/prokip-sales", syncHandler.SyncProkipSales)
			connections.POST("/:id/sync/inventory", syncHandler.SyncInventory)
			connections.POST("/:id/import-products", syncHandler.ImportProducts)
		}

		// Prokip credentials
		prokip := v1.Group("/prokip-config")
		{
			prokip.PUT("", prokipHandler.Upsert)
			prokip.GET("", prokipHandler.Get)
			prokip.GET("/:user_id/locations", prokipHandler.Locations)
		}

		// Sync errors
		syncErrors := v1.Group("/sync-errors")
		{
			syncErrors.GET("", syncErrorHandler.List)
			syncErrors.POST("/:id/resolve", syncErrorHandler.Resolve)
		}

		v1.POST("/sync/run", syncHandler.RunAll)

		// Store webhooks
		v1.POST("/webhooks/:platform/:connection_id", webhookHandler.Receive)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.App.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return &Server{
		config:  cfg,
		logger:  logger,
		db:      db,
		router:  router,
		handler: corsHandler.Handler(router),
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.App.APIHost, s.config.App.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the router wrapped with CORS, for serverless entrypoints.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the bare Gin router.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
