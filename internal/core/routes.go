package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexflow/internal/types"
)

// MountRoutes attaches middleware and the engine's endpoints to the router.
// Recoverer is outermost so panics anywhere in the chain are caught.
func (s *Server) MountRoutes() {
	r := s.router

	r.Use(s.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(s.Logger))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.SchedulerAuth)
		r.Post("/v1/alerts/run", s.handleRunAlerts)
		r.Post("/v1/alerts/cleanup", s.handleCleanup)
	})
}

// handleRunAlerts executes one alert run and returns its summary. Per-item
// failures are reported only through the summary counters; the endpoint fails
// hard only when no deadlines could be read at all.
func (s *Server) handleRunAlerts(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Orchestrator.Run(r.Context())
	if err != nil {
		Error(w, r, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"alert run aborted: unable to read deadlines",
			err,
		))
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: summary})
}

// handleCleanup deletes notification rows past the retention window.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.Cleaner == nil {
		Error(w, r, types.NewAppError(types.ErrCodeConfigInvalid, "retention cleanup is not configured", nil))
		return
	}

	deleted, err := s.Cleaner.CleanupNotifications(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int64{"deleted": deleted}})
}
