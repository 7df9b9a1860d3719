// Package server exposes a recall client as a JSON REST API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/server/handlers"
)

// Server wraps the gin router and the underlying HTTP server.
type Server struct {
	config *config.Config
	router *gin.Engine
	client recall.Recall
	logger *slog.Logger
	server *http.Server
}

// New creates a server around an assembled recall client.
func New(cfg *config.Config, client recall.Recall, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Setup builds the router, middleware, and HTTP server.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.client)
	recordsHandler := handlers.NewRecordsHandler(s.client)
	searchHandler := handlers.NewSearchHandler(s.client)
	maintenanceHandler := handlers.NewMaintenanceHandler(s.client)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	{
		records := v1.Group("/records")
		{
			records.POST("", recordsHandler.Create)
			records.GET("/:id", recordsHandler.Get)
			records.PATCH("/:id", recordsHandler.Update)
			records.DELETE("/:id", recordsHandler.Delete)
			records.GET("/:id/related", recordsHandler.Related)
			records.GET("/:id/quality", recordsHandler.Quality)
		}

		v1.POST("/search", searchHandler.Search)
		v1.POST("/links", searchHandler.CreateLink)
		v1.DELETE("/links", searchHandler.DeleteLink)
		v1.GET("/orphans", searchHandler.Orphans)

		v1.POST("/sweep", maintenanceHandler.Sweep)
		v1.POST("/archive", maintenanceHandler.Archive)
		v1.POST("/export", maintenanceHandler.Export)
		v1.POST("/import", maintenanceHandler.Import)
	}
}

// Addr returns the listen address; valid after Setup.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds permissive CORS headers for local tooling.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
