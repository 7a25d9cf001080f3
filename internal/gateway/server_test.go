package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nextlevelbuilder/fabot/internal/channels"
	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/metrics"
)

type fakeChannel struct{ running bool }

func (f *fakeChannel) Name() string                { return "telegram" }
func (f *fakeChannel) Start(context.Context) error { f.running = true; return nil }
func (f *fakeChannel) Stop(context.Context) error  { f.running = false; return nil }
func (f *fakeChannel) IsRunning() bool             { return f.running }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		dbErr   error
		code    int
		status  string
	}{
		{name: "healthy", running: true, code: http.StatusOK, status: "ok"},
		{name: "bot stopped", running: false, code: http.StatusServiceUnavailable, status: "degraded"},
		{name: "database down", running: true, dbErr: errors.New("closed"), code: http.StatusServiceUnavailable, status: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := channels.NewManager()
			mgr.RegisterChannel("telegram", &fakeChannel{running: tt.running})
			s := NewServer(config.GatewayConfig{}, mgr, fakePinger{err: tt.dbErr}, prometheus.NewRegistry())

			rr := get(t, s.Handler(), "/healthz")
			if rr.Code != tt.code {
				t.Errorf("code = %d, want %d", rr.Code, tt.code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %q, want %q", resp.Status, tt.status)
			}
			if resp.Channels["telegram"].Running != tt.running {
				t.Errorf("channels = %+v", resp.Channels)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, func() int { return 2 })
	m.Decision(metrics.SourceChannelPost, false)

	s := NewServer(config.GatewayConfig{}, channels.NewManager(), nil, reg)
	rr := get(t, s.Handler(), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`fabot_decisions_total{source="channel_post",verdict="rejected"} 1`,
		"fabot_media_groups_pending 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStart_DisabledOnZeroPort(t *testing.T) {
	s := NewServer(config.GatewayConfig{Port: 0}, channels.NewManager(), nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
