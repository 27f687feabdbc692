package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/referral-engine/internal/config"
)

// Server wraps the HTTP server for the referral API.
type Server struct {
	server *http.Server
}

// NewServer creates the API server with routes wired.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.GetHost(), cfg.Port),
			Handler:      SetupRoutes(h),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
