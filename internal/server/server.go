package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/config"
	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/review"
	"github.com/verityai/caseflow/internal/status"
)

// Deps are the wired application services the HTTP surface exposes.
type Deps struct {
	Chat     *chat.Orchestrator
	Status   *status.Tracker
	Review   *review.Manager
	Entities domain.EntityRepository
}

// Server is the HTTP front of the interaction layer.
type Server struct {
	httpServer *http.Server
}

func New(cfg *config.Config, deps Deps) *Server {
	router := newRouter(cfg, deps)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     router,
			ReadTimeout: cfg.Server.ReadTimeout,
			// No WriteTimeout: SSE and WebSocket connections are long-lived.
		},
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("server: listening")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
