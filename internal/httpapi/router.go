package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

type RouterConfig struct {
	// JWT Authentication. Empty disables auth.
	JWTSecret string

	// Largest inbound stream message accepted, in bytes.
	MaxMessageBytes int64
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	store    *store.Store
	eventLog *eventlog.Logger
	sessions *session.Registry
	mux      *http.ServeMux
}

// NewRouter wires the HTTP surface. s may be nil, in which case nothing is
// persisted and lookups only see in-memory sessions.
func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, sessions *session.Registry) http.Handler {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 8 << 20
	}
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		eventLog: eventLog,
		sessions: sessions,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health and metrics
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Sessions
	r.mux.HandleFunc("POST /api/sessions/start", r.withAuth(r.handleStartSession))
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withAuth(r.handleGetSession))
	r.mux.HandleFunc("POST /api/sessions/{id}/end", r.withAuth(r.handleEndSession))
	r.mux.HandleFunc("GET /api/sessions/{id}/report", r.withAuth(r.handleGetReport))

	// Interview stream
	r.mux.HandleFunc("GET /api/ws/{id}", r.withAuth(r.handleInterviewWS))

	// Push notifications (protected)
	r.mux.HandleFunc("POST /api/push/register", r.withAuth(r.handlePushRegister))
	r.mux.HandleFunc("POST /api/push/unregister", r.withAuth(r.handlePushUnregister))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if r.sessions.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	if r.store != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.store.Ping(ctx); err != nil {
			r.logger.Printf("readyz: database ping failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func nowUTC() time.Time { return time.Now().UTC() }

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
