// Package core provides the HTTP chassis for the lexflow alert engine: a chi
// router with cross-cutting middleware (panic recovery, request IDs, request
// logging, scheduler authentication) mounted in front of the run trigger and
// health endpoints.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexflow/internal/alerts"
	"lexflow/internal/config"
)

// HealthProber is the minimal database surface the health endpoint needs.
// Satisfied by *pgxpool.Pool.
type HealthProber interface {
	Ping(ctx context.Context) error
}

// Server encapsulates the dependencies of the alert engine API, allowing
// injection during testing and distinct configuration per environment.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Orchestrator *alerts.Orchestrator
	Cleaner      RetentionCleaner
	DB           HealthProber

	router *chi.Mux
}

// RetentionCleaner is the retention cleanup surface exposed through the
// trigger API. Satisfied by db.NotificationRepository via a thin adapter in
// the wiring layer.
type RetentionCleaner interface {
	CleanupNotifications(ctx context.Context) (int64, error)
}

// NewServer validates the critical dependencies and prepares the router.
// Routes are mounted separately via MountRoutes so tests can customize
// registration.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	orchestrator *alerts.Orchestrator,
	cleaner RetentionCleaner,
	dbProber HealthProber,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator must not be nil")
	}

	return &Server{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orchestrator,
		Cleaner:      cleaner,
		DB:           dbProber,
		router:       chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}
