// Package server provides the HTTP server for the storage REST surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/christoofar/FogLAMP/internal/config"
)

type RegisterHandlersFn func(router *gin.RouterGroup)

type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// NewServer builds the gin engine with zap request logging and panic
// recovery, and hands the route group to the registration callback.
func NewServer(cfg config.Server, registerHandlers RegisterHandlersFn) *Server {
	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L().Named("http"), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L().Named("http"), true))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})
	registerHandlers(router.Group("/storage"))

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler: router,
		},
		log: zap.S().Named("server"),
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Infow("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
