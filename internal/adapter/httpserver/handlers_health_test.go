package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{}}`,
		},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "redis", Check: healthOK},
				{Name: "bus_subscription", Check: healthOK},
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{"redis":"ok","bus_subscription":"ok"}}`,
		},
		{
			name: "bus down",
			checks: []HealthCheck{
				{Name: "redis", Check: healthOK},
				{Name: "bus_subscription", Check: healthErr("not subscribed")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"redis":"ok","bus_subscription":"not subscribed"}}`,
		},
		{
			name: "every failure reported",
			checks: []HealthCheck{
				{Name: "redis", Check: healthErr("connection refused")},
				{Name: "bus_subscription", Check: healthErr("not subscribed")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"redis":"connection refused","bus_subscription":"not subscribed"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &mockRelay{}, withHealthChecks(HealthChecks{Ready: tt.checks}))

			rec := serve(s, http.MethodGet, "/health/ready", nil)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHealthStartup_UsesStartupChecksOnly(t *testing.T) {
	s := newTestServer(t, &mockRelay{}, withHealthChecks(HealthChecks{
		Startup: []HealthCheck{{Name: "bus_subscribed", Check: healthOK}},
		Ready:   []HealthCheck{{Name: "redis", Check: healthErr("connection refused")}},
	}))

	rec := serve(s, http.MethodGet, "/health/startup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"started","checks":{"bus_subscribed":"ok"}}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthStartup_NotYetStarted(t *testing.T) {
	s := newTestServer(t, &mockRelay{}, withHealthChecks(HealthChecks{
		Startup: []HealthCheck{{Name: "bus_subscribed", Check: healthErr("bus never subscribed")}},
	}))

	rec := serve(s, http.MethodGet, "/health/startup", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealthLiveness(t *testing.T) {
	clock := clockwork.NewFakeClockAt(fixedNow)
	s := newTestServer(t, &mockRelay{}, withClock(clock), withHealthChecks(HealthChecks{Ready: []HealthCheck{{Name: "redis", Check: healthErr("down")}}}))
	clock.Advance(90 * time.Second)

	rec := serve(s, http.MethodGet, "/health/live", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 90, body["uptime"], 0.001)
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, &mockRelay{})

	rec := serve(s, http.MethodGet, "/version", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "dev", body["version"])
	assert.Contains(t, body, "go_version")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &mockRelay{})

	rec := serve(s, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}
