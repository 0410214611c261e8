package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func originRequest(origin string) *http.Request {
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy_Allow(t *testing.T) {
	appURL := "https://dashboard.example.com/trading"

	tests := []struct {
		name          string
		origin        string
		allowLoopback bool
		want          bool
	}{
		{"no origin header", "", false, true},
		{"app origin", "https://dashboard.example.com", false, true},
		{"app origin upper case", "https://Dashboard.Example.com", false, true},

		{"foreign host", "https://evil.com", false, false},
		{"foreign port", "https://dashboard.example.com:9090", false, false},
		{"plain http", "http://dashboard.example.com", false, false},
		{"subdomain", "https://sub.dashboard.example.com", false, false},
		{"opaque null origin", "null", false, false},

		{"localhost allowed", "http://localhost:5173", true, true},
		{"localhost without port", "http://localhost", true, true},
		{"ipv4 loopback", "http://127.0.0.1:3000", true, true},
		{"ipv6 loopback", "http://[::1]:3000", true, true},
		{"null with loopback", "null", true, false},
		{"lan address with loopback", "http://192.168.1.10:3000", true, false},
		{"localhost without loopback", "http://localhost:8000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewOriginPolicy(appURL, tt.allowLoopback)
			assert.Equal(t, tt.want, policy.Allow(originRequest(tt.origin)))
		})
	}
}

func TestOriginPolicy_EmptyAppURLAllowsAll(t *testing.T) {
	policy := NewOriginPolicy("", false)

	for _, origin := range []string{"", "https://evil.com", "http://localhost:8000", "null"} {
		assert.True(t, policy.Allow(originRequest(origin)), origin)
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://example.com/trading", "https://example.com"},
		{"https://example.com:8443/path", "https://example.com:8443"},
		{"HTTP://LocalHost:8000/", "http://localhost:8000"},
		{"", ""},
		{"mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, originOf(tt.rawURL), tt.rawURL)
	}
}
