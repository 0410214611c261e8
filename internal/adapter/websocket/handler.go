package websocket

import (
	"log/slog"
	"net"
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/jonboulle/clockwork"
)

// Handler admits websocket upgrades and runs a Session for each accepted connection.
type Handler struct {
	registry  Registry
	limits    *ConnectionLimits
	upgrader  gorilla.Upgrader
	metrics   *metrics.WebSocketMetrics
	clock     clockwork.Clock
	extractIP func(*http.Request) string
}

// NewHandler wires the upgrade handler. extractIP may be nil, in which case the
// request's remote address is used.
func NewHandler(registry Registry, limits *ConnectionLimits, checkOrigin func(*http.Request) bool, m *metrics.WebSocketMetrics, clock clockwork.Clock, extractIP func(*http.Request) string) *Handler {
	if extractIP == nil {
		extractIP = remoteIP
	}
	return &Handler{
		registry: registry,
		limits:   limits,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		metrics:   m,
		clock:     clock,
		extractIP: extractIP,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := h.extractIP(r)

	ok, reason := h.limits.Acquire(ip)
	if !ok {
		h.metrics.RejectedConnections.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "reason", reason, "ip", ip, "current_connections", h.limits.Current())
		http.Error(w, http.StatusText(reason.HTTPStatus()), reason.HTTPStatus())
		return
	}
	defer h.limits.Release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.metrics.RejectedConnections.WithLabelValues("upgrade_failed").Inc()
		slog.Debug("WebSocket upgrade failed", "ip", ip, "error", err)
		return
	}

	session := NewSession(conn, h.registry, h.clock)
	if err := session.Run(r.Context()); err != nil {
		slog.Warn("WebSocket session not started", "ip", ip, "error", err)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
