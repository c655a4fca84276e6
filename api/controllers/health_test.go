package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

type stubPinger struct {
	err   error
	calls int
}

func (p *stubPinger) Ping(ctx context.Context) error {
	p.calls++
	return p.err
}

func TestHealthLiveSetsEnvHeader(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get(envHeader); got != "dev" {
		t.Fatalf("expected env header dev, got %q", got)
	}
}

func TestHealthReadyAllHealthy(t *testing.T) {
	db, cache := &stubPinger{}, &stubPinger{}
	cfg := &config.Config{}
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, ReadyCheck{Name: "database", Pinger: db}, ReadyCheck{Name: "redis", Pinger: cache}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if db.calls != 1 || cache.calls != 1 {
		t.Fatalf("expected one ping each, got %d %d", db.calls, cache.calls)
	}
}

func TestHealthReadyDependencyDown(t *testing.T) {
	db, cache := &stubPinger{}, &stubPinger{err: errors.New("connection refused")}
	cfg := &config.Config{}
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, ReadyCheck{Name: "database", Pinger: db}, ReadyCheck{Name: "redis", Pinger: cache}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
