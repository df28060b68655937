package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
)

type stubChecker struct {
	name string
	err  error
	wait time.Duration
}

func (s stubChecker) Name() string { return s.name }

func (s stubChecker) Check(ctx context.Context) error {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func testConfig() *config.ObservabilityConfig {
	return &config.ObservabilityConfig{
		Port:          "0",
		Timeout:       200 * time.Millisecond,
		LivenessPath:  "/healthz",
		ReadinessPath: "/readyz",
		MetricsPath:   "/metrics",
	}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]map[string]string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]map[string]string
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_Liveness(t *testing.T) {
	t.Parallel()

	srv := observability.NewServer(logger.Discard(), testConfig(), stubChecker{name: "redis", err: errors.New("down")})

	rec, _ := get(t, srv.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []observability.Checker
		wantCode   int
		wantStatus map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{},
		},
		{
			name:       "all healthy",
			checkers:   []observability.Checker{stubChecker{name: "redis"}, stubChecker{name: "provider:kv"}},
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{"redis": "up", "provider:kv": "up"},
		},
		{
			name:       "one failing",
			checkers:   []observability.Checker{stubChecker{name: "redis"}, stubChecker{name: "postgres", err: errors.New("refused")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"redis": "up", "postgres": "down: refused"},
		},
		{
			name:       "slow checker hits the timeout",
			checkers:   []observability.Checker{stubChecker{name: "s3", wait: time.Second}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"s3": "down: context deadline exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := observability.NewServer(logger.Discard(), testConfig(), tt.checkers...)

			rec, body := get(t, srv.Handler(), "/readyz")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	observability.EdgePassthroughTotal.Inc()
	srv := observability.NewServer(logger.Discard(), testConfig())

	rec, _ := get(t, srv.Handler(), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bifrost_edge_passthrough_total")
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	t.Parallel()

	srv := observability.NewServer(logger.Discard(), testConfig())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
