package core

import (
	"context"
	"net/http"
	"time"
)

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Database    string `json:"database"`
}

// handleHealth reports liveness plus a bounded database probe. A failing
// probe degrades the response to 503 so load balancers and schedulers can
// hold traffic, but the process itself stays up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Environment: s.Config.Environment,
		Version:     s.Config.Build.Version,
		Commit:      s.Config.Build.Commit,
		Database:    "ok",
	}

	status := http.StatusOK
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Error("health check database probe failed", "error", err.Error())
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	JSON(w, r, status, resp)
}
