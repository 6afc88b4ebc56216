package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	if s.metricCfg.Enabled {
		r.Method(http.MethodGet, pathOr(s.metricCfg.Path, "/metrics"), s.metrics.Handler())
	}
	r.Get(pathOr(s.wsCfg.Path, "/ws"), s.handleWebSocket)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Route("/gadgets", func(r chi.Router) {
		r.Get("/", s.handleListGadgets)
		r.Get("/{id}", s.handleGetGadget)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/", s.handleCreateGadget)
			r.Patch("/{id}", s.handleUpdateGadget)
			r.Delete("/{id}", s.handleDecommissionGadget)
			r.Post("/{id}/self-destruct", s.handleSelfDestructGadget)
		})
	})

	r.With(s.authMiddleware).Get("/audit", s.handleListAuditLogs)

	return r
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}
