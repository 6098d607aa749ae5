// Package frontend is a thin REST+WebSocket adapter over coreapi.API. It
// exists to exercise the core end-to-end; a real deployment might replace
// it with gRPC, a model-context tool server, or nothing at all if the core
// is embedded directly.
package frontend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/browsercore/browsercore/internal/coreapi"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/ratelimit"
)

// Server adapts coreapi.API to net/http.
type Server struct {
	api     *coreapi.API
	log     *corelog.Logger
	limiter *ratelimit.Limiter
}

// New builds a Server. rps/burst size the per-caller token bucket; pass
// zero values to disable rate limiting entirely.
func New(api *coreapi.API, log *corelog.Logger, rps float64, burst int) *Server {
	if log == nil {
		log = corelog.NewDefault()
	}
	var limiter *ratelimit.Limiter
	if rps > 0 {
		limiter = ratelimit.New(rps, burst)
	}
	return &Server{api: api, log: log, limiter: limiter}
}

// Routes builds the mux. Every /api/ route except /api/metrics and
// /api/events is wrapped with rate limiting (keyed by caller, see
// rateLimited); handlers resolve the principal themselves.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/pool", s.rateLimited(s.handlePoolMetrics))
	mux.HandleFunc("GET /api/store/health", s.rateLimited(s.handleStoreHealth))

	mux.HandleFunc("POST /api/sessions", s.rateLimited(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions", s.rateLimited(s.handleListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", s.rateLimited(s.handleGetSession))
	mux.HandleFunc("POST /api/sessions/{id}/touch", s.rateLimited(s.handleTouchSession))
	mux.HandleFunc("POST /api/sessions/{id}/refresh", s.rateLimited(s.handleRefreshSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.rateLimited(s.handleDeleteSession))

	mux.HandleFunc("POST /api/sessions/{id}/contexts", s.rateLimited(s.handleCreateContext))
	mux.HandleFunc("GET /api/sessions/{id}/contexts", s.rateLimited(s.handleListContexts))
	mux.HandleFunc("GET /api/contexts/{id}", s.rateLimited(s.handleGetContext))
	mux.HandleFunc("PATCH /api/contexts/{id}", s.rateLimited(s.handleUpdateContext))
	mux.HandleFunc("DELETE /api/contexts/{id}", s.rateLimited(s.handleDeleteContext))

	mux.HandleFunc("POST /api/contexts/{id}/actions", s.rateLimited(s.handleExecute))

	mux.HandleFunc("GET /api/events", s.handleEvents)

	return mux
}

// rateLimited applies the per-caller token bucket, keyed by the resolved
// principal's user id (falling back to remote addr for unauthenticated
// callers), before delegating to next.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := principalFromRequest(r).UserID
			if key == "" {
				key = r.RemoteAddr
			}
			if !s.limiter.Allow(key) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if t := s.api.Telemetry(); t != nil {
		t.Handler().ServeHTTP(w, r)
		return
	}
	http.Error(w, "telemetry not configured", http.StatusServiceUnavailable)
}

func (s *Server) handlePoolMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.GetPoolMetrics())
}

func (s *Server) handleStoreHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.GetStoreHealth())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFromError maps a coreerr.Kind to the matching HTTP status.
func statusFromError(err error) int {
	switch coreerr.KindOf(err) {
	case coreerr.NotFound:
		return http.StatusNotFound
	case coreerr.PermissionDenied, coreerr.Security:
		return http.StatusForbidden
	case coreerr.Unauthenticated:
		return http.StatusUnauthorized
	case coreerr.Invalid:
		return http.StatusBadRequest
	case coreerr.Conflict:
		return http.StatusConflict
	case coreerr.Timeout:
		return http.StatusGatewayTimeout
	case coreerr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
