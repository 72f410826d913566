package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/rateprobe/internal/app"
	"github.com/ternarybob/rateprobe/internal/common"
)

// Server serves the REST API, the metrics endpoint and the /ws event channel
type Server struct {
	app    *app.App
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func New(application *app.App) *Server {
	s := &Server{app: application}

	cfg := application.Config.Server
	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withConditionalMiddleware(s.setupRoutes()),
		ReadTimeout:  common.ParseDurationOr(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: common.ParseDurationOr(cfg.WriteTimeout, 90*time.Second),
		IdleTimeout:  common.ParseDurationOr(cfg.IdleTimeout, 60*time.Second),
	}
	return s
}

// Start binds the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.app.Logger.Info().
		Str("address", ln.Addr().String()).
		Str("metrics_path", s.metricsPath()).
		Msg("HTTP server listening")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Addr is the bound address once Start is listening, or "" before that
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked websocket connections are closed by App.Close.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
