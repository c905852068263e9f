// Package api serves the JSON snapshot API and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/metrics"
	"spot-perps-arb/internal/service"
)

// Server wraps the gin router and http.Server lifecycle.
type Server struct {
	cfg        *config.Config
	svc        *service.Service
	metrics    *metrics.Metrics
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer builds the router and handlers.
func NewServer(cfg *config.Config, svc *service.Service, m *metrics.Metrics, logger zerolog.Logger) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: m,
		router:  router,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/opportunities", s.handleOpportunities)
		v1.GET("/best", s.handleBest)
		v1.GET("/perps-pairs", s.handlePerpsPairs)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	snapshot := s.svc.Current()
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	if snapshot == nil {
		status = http.StatusServiceUnavailable
		body = gin.H{"status": "warming_up"}
	} else {
		body["snapshot_at"] = snapshot.At
	}
	c.JSON(status, body)
}

func (s *Server) handleOpportunities(c *gin.Context) {
	snapshot := s.svc.Current()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleBest(c *gin.Context) {
	snapshot := s.svc.Current()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
		return
	}
	if snapshot.Best == nil {
		// Markets agree; distinct from the snapshot being unavailable.
		c.JSON(http.StatusNotFound, gin.H{"error": "no profitable opportunity", "at": snapshot.At})
		return
	}
	c.JSON(http.StatusOK, gin.H{"at": snapshot.At, "best": snapshot.Best})
}

func (s *Server) handlePerpsPairs(c *gin.Context) {
	snapshot := s.svc.Current()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"at": snapshot.At, "pairs": snapshot.PerpsPairs})
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server stopped")
		}
	}()
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
