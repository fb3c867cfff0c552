// Package api provides the HTTP API server of the analytics dashboard.
// It wires the gin engine with request logging, recovery and CORS, and
// mounts the read-only dashboard routes under /api.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/apiwatch/dashboard/internal/api/handlers/dashboard"
	"github.com/apiwatch/dashboard/internal/config"
	"github.com/apiwatch/dashboard/internal/envelope"
	"github.com/apiwatch/dashboard/internal/logging"
)

// Server is the dashboard HTTP server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	cfg    *config.Config
}

// NewServer creates the engine, installs middleware and registers routes.
func NewServer(cfg *config.Config, handler *dashboard.Handler) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(corsMiddleware(cfg.CORS))
	engine.Use(preflight())

	handler.Register(engine.Group("/api"))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope.Fail("Not found"))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, envelope.Fail("Method not allowed"))
	})

	s := &Server{engine: engine, cfg: cfg}
	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("analytics API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	log.Debug("API server stopped")
	return nil
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.DefaultConfig()
	cc.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	cc.AddAllowHeaders("Accept", logging.RequestIDHeader)
	cc.AddExposeHeaders(logging.RequestIDHeader)
	cc.AllowAllOrigins = len(cfg.AllowOrigins) == 0 || lo.Contains(cfg.AllowOrigins, "*")
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(cc)
}

// preflight answers any OPTIONS request the CORS middleware did not.
func preflight() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
