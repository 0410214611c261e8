package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open a stream. Its Allow method is
// the upgrader's CheckOrigin.
type OriginPolicy struct {
	appOrigin     string
	allowLoopback bool
}

// NewOriginPolicy pins streams to the origin of appURL. An empty appURL disables the
// check; allowLoopback additionally admits localhost pages for local frontends.
func NewOriginPolicy(appURL string, allowLoopback bool) *OriginPolicy {
	return &OriginPolicy{
		appOrigin:     originOf(appURL),
		allowLoopback: allowLoopback,
	}
}

// Allow reports whether r may be upgraded. Requests without an Origin header come
// from non-browser clients and are admitted.
func (p *OriginPolicy) Allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.appOrigin == "" || origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err == nil && u.Host != "" {
		if strings.ToLower(u.Scheme+"://"+u.Host) == p.appOrigin {
			return true
		}
		if p.allowLoopback && isLoopbackHost(u.Hostname()) {
			return true
		}
	}

	slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

// originOf reduces a URL to scheme://host[:port], or "" when it has no host.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
