package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// ActorHeader names the acting user. Authentication happens upstream; the
// gateway forwards the verified identity here.
const ActorHeader = "X-Actor-ID"

// ActorMiddleware extracts the acting user from the request headers into
// the context. Requests without an actor are rejected.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ActorHeader)
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || actorID <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid actor", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(observability.WithActorID(r.Context(), actorID)))
	})
}

// actorFrom returns the acting user set by ActorMiddleware.
func actorFrom(r *http.Request) (authz.UserID, bool) {
	actorID, ok := observability.GetActorID(r.Context())
	return authz.UserID(actorID), ok
}

// RequirePermission guards a route behind a global permission check on the
// acting user.
func (s *Server) RequirePermission(perm catalog.Key) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := actorFrom(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
				return
			}
			granted, err := s.engine.Check(r.Context(), actorID, perm, nil)
			if err != nil {
				writeError(w, err)
				return
			}
			if !granted {
				writeError(w, authz.Forbidden("missing permission %s", perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latencies per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
