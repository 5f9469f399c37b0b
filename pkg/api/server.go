package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/engine"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// Server is the HTTP surface of the authorization engine: permission
// checks, claims introspection, role and membership management.
type Server struct {
	engine  *engine.Engine
	logger  *observability.Logger
	metrics *observability.Metrics
	router  *mux.Router
	v1      *mux.Router
	sink    *auditSink
}

// NewServer creates an API server and wires its routes. Logger and Metrics
// may be nil.
func NewServer(eng *engine.Engine, logger *observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{
		engine:  eng,
		logger:  logger,
		metrics: metrics,
		router:  mux.NewRouter(),
		sink:    &auditSink{logger: logger},
	}
	s.routes()
	return s
}

// EnableAudit turns on the audit trail: mutations through this server are
// recorded, and the /v1/audit endpoints are registered.
func (s *Server) EnableAudit(recorder *audit.DBRecorder) {
	s.sink.recorder = recorder
	NewAuditHandlers(recorder).RegisterRoutes(s.v1)
}

// EnableRateLimit enforces a per-caller rate limit on the /v1 API.
func (s *Server) EnableRateLimit(limiter *RateLimiter) {
	s.v1.Use(limiter.Middleware())
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.v1 = s.router.PathPrefix("/v1").Subrouter()
	s.v1.Use(ActorMiddleware)

	check := NewCheckHandlers(s.engine, s.sink)
	check.RegisterRoutes(s.v1)

	roleHandlers := NewRoleHandlers(s.engine, s.sink)
	roleHandlers.RegisterRoutes(s.v1)

	orgHandlers := NewOrgHandlers(s.engine, s.sink)
	orgHandlers.RegisterRoutes(s.v1)
}
