// Package gateway serves the operational HTTP endpoints: liveness and
// Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextlevelbuilder/fabot/internal/channels"
	"github.com/nextlevelbuilder/fabot/internal/config"
)

// Pinger checks a backing dependency (the database handle).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the health and metrics listener.
type Server struct {
	cfg      config.GatewayConfig
	channels *channels.Manager
	db       Pinger
	gatherer prometheus.Gatherer

	httpServer *http.Server
	handler    http.Handler
}

// NewServer creates the gateway server. db may be nil.
func NewServer(cfg config.GatewayConfig, mgr *channels.Manager, db Pinger, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		channels: mgr,
		db:       db,
		gatherer: gatherer,
	}
}

// Handler builds and caches the chi router with all routes registered.
func (s *Server) Handler() http.Handler {
	if s.handler != nil {
		return s.handler
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.handler = r
	return r
}

// Start listens on host:port and serves until ctx is cancelled. A zero port
// disables the listener and Start returns immediately.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Port == 0 {
		slog.Info("gateway disabled (port 0)")
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status   string                            `json:"status"` // "ok" or "degraded"
	Channels map[string]channels.ChannelStatus `json:"channels"`
	Database string                            `json:"database,omitempty"`
}

// handleHealth returns 200 when every channel is running and the database
// answers, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if s.channels != nil {
			resp.Channels = s.channels.GetStatus()
		}
		if s.channels == nil || !s.channels.Healthy() {
			resp.Status = "degraded"
		}

		if s.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.db.PingContext(ctx); err != nil {
				slog.Warn("gateway: database ping failed", "error", err)
				resp.Database = "unreachable"
				resp.Status = "degraded"
			} else {
				resp.Database = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
