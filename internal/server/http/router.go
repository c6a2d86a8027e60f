// Package httpserver serves the operational HTTP endpoints: health probes and metrics.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable. *postgres.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

type healthHandler struct {
	db  Pinger
	log *zap.Logger
	now func() time.Time
}

// NewRouter builds the chi router for /healthz, /readyz and /metrics.
func NewRouter(db Pinger, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &healthHandler{db: db, log: log, now: time.Now}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Services: map[string]string{"postgres": "healthy"}}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("postgres health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Services["postgres"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	h.write(w, code, resp)
}

func (h *healthHandler) write(w http.ResponseWriter, code int, resp HealthResponse) {
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// New returns a server for addr. An empty addr disables it.
func New(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.srv.Addr == "" {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
