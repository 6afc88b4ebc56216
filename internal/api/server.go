package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/imf-gadgets/gadget-core/internal/audit"
	"github.com/imf-gadgets/gadget-core/internal/auth"
	"github.com/imf-gadgets/gadget-core/internal/gadget"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/config"
	"github.com/imf-gadgets/gadget-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure that GET /health checks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	MetricsConfig config.MetricsConfig
	Logger        *logging.Logger

	Gadgets *gadget.Service
	Auth    *auth.Service

	// AuditRepo is optional; without it nothing is recorded and GET /audit
	// answers 503.
	AuditRepo audit.Repository

	// DB is checked by GET /health when set.
	DB HealthChecker

	// Hub and Metrics are usually created first so they can be registered
	// as gadget event sinks. The server creates its own when they are nil.
	Hub     *Hub
	Metrics *Metrics

	Version string
}

// Server is the HTTP API server for the gadget inventory.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub and
// the audit writer. The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	metricCfg config.MetricsConfig
	logger    *logging.Logger
	gadgets   *gadget.Service
	auth      *auth.Service
	tokens    *auth.TokenService
	auditRepo audit.Repository
	db        HealthChecker
	hub       *Hub
	metrics   *Metrics
	version   string

	server    *http.Server
	auditCh   chan *audit.AuditLog
	auditDone sync.WaitGroup
	cancel    context.CancelFunc // stops background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gadgets == nil {
		return nil, fmt.Errorf("gadget service is required")
	}
	if deps.Auth == nil || deps.Auth.Tokens() == nil {
		return nil, fmt.Errorf("auth service with a token service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		metricCfg: deps.MetricsConfig,
		logger:    deps.Logger.With("component", "api"),
		gadgets:   deps.Gadgets,
		auth:      deps.Auth,
		tokens:    deps.Auth.Tokens(),
		auditRepo: deps.AuditRepo,
		db:        deps.DB,
		hub:       deps.Hub,
		metrics:   deps.Metrics,
		version:   deps.Version,
	}

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, deps.Logger)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(s.hub.ClientCount)
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests use it directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the audit writer, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Background work outlives ctx until Close has drained in-flight requests.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.startBackground(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground runs the hub and the audit writer until ctx is cancelled.
func (s *Server) startBackground(ctx context.Context) {
	go s.hub.Run(ctx)

	if s.auditCh != nil {
		s.auditDone.Add(1)
		go func() {
			defer s.auditDone.Done()
			s.drainAuditLog(ctx)
		}()
	}
}

// Close gracefully shuts down the API server.
//
// In-flight requests get up to 10 seconds to finish. Queued audit entries
// are written before Close returns.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	// Stop background work only after handlers have returned so their audit
	// entries are still drained.
	if s.cancel != nil {
		s.cancel()
	}
	s.auditDone.Wait()

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
