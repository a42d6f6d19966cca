// Package api exposes the alert service over HTTP with gin.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	cfg    config.ServerConfig
	logger logger.Logger
}

func NewServer(cfg config.ServerConfig, h *Handlers, log logger.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(log))

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
	s.setupRoutes(h)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/ready", h.ReadinessCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/alerts", h.CreateAlert)
		v1.GET("/alerts/:id", h.GetAlert)
		v1.POST("/alerts/:id/send", h.SendAlert)
		v1.POST("/alerts/:id/cancel", h.CancelAlert)
		v1.POST("/alerts/:id/acknowledge", h.Acknowledge)
		v1.GET("/alerts/:id/acknowledgments", h.ListAcknowledgments)
		if h.deliveries != nil {
			v1.GET("/alerts/:id/deliveries", h.ListDeliveries)
		}

		v1.PUT("/users/:id/push-token", h.RegisterPushToken)

		if h.events != nil {
			v1.GET("/events", h.StreamEvents)
		}
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server listening", map[string]interface{}{"addr": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	timeout := config.GetDuration(s.cfg.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
