package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/app"
	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockRelay struct {
	health     domain.Health
	state      app.StateResponse
	namespaces map[string]app.StateResponse
	stateErr   error
}

func (m *mockRelay) Health() domain.Health { return m.health }

func (m *mockRelay) State() app.StateResponse { return m.state }

func (m *mockRelay) NamespaceState(namespace string) (app.StateResponse, error) {
	if m.stateErr != nil {
		return nil, m.stateErr
	}
	resp, ok := m.namespaces[namespace]
	if !ok {
		return nil, domain.ErrNamespaceUnknown
	}
	return resp, nil
}

type testServerOption func(*testServerConfig)

type testServerConfig struct {
	cfg          *config.Config
	healthChecks HealthChecks
	wsHandler    http.Handler
	httpMetrics  *metrics.HTTPMetrics
	clock        clockwork.Clock
}

func withHealthChecks(checks HealthChecks) testServerOption {
	return func(c *testServerConfig) { c.healthChecks = checks }
}

func withFrontendDir(dir string) testServerOption {
	return func(c *testServerConfig) { c.cfg.FrontendDir = dir }
}

func withWebSocketHandler(h http.Handler) testServerOption {
	return func(c *testServerConfig) { c.wsHandler = h }
}

func withHTTPMetrics(m *metrics.HTTPMetrics) testServerOption {
	return func(c *testServerConfig) { c.httpMetrics = m }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(c *testServerConfig) { c.clock = clock }
}

func newTestServer(t *testing.T, relay relayService, opts ...testServerOption) *Server {
	t.Helper()

	c := &testServerConfig{
		cfg: &config.Config{
			AppEnv:   "test",
			Port:     "0",
			RedisURL: "redis://localhost:6379",
		},
		wsHandler: http.NotFoundHandler(),
		clock:     clockwork.NewFakeClockAt(fixedNow),
	}
	for _, opt := range opts {
		opt(c)
	}

	reg := prometheus.NewRegistry()
	return NewServer(c.cfg, relay, c.wsHandler, metrics.Handler(reg), c.httpMetrics, c.healthChecks, c.clock)
}

func serve(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func healthOK(context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}
