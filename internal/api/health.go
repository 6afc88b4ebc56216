package api

import (
	"context"
	"io"
	"net/http"
	"time"
)

// welcomeMessage is served on GET /.
const welcomeMessage = "Welcome to the IMF Gadget API! 🚀"

// healthCheckTimeout bounds the database ping made by GET /health.
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Database  string `json:"database,omitempty"`
	WSClients int    `json:"wsClients"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort write
	io.WriteString(w, welcomeMessage)
}

// handleHealth reports liveness plus database reachability. A failed
// database ping answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		WSClients: s.hub.ClientCount(),
	}

	status := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp.Database = "ok"
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
