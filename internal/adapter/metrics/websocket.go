package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for client connections and fan-out.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	FramesSent          *prometheus.CounterVec
	FramesDropped       *prometheus.CounterVec
	SlowClientEvictions prometheus.Counter
	WriteFailures       prometheus.Counter
	RejectedConnections *prometheus.CounterVec
	BroadcastDuration   prometheus.Histogram
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket client connections.",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to clients, by message type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "frames_dropped_total",
			Help:      "Total number of frames not delivered because the client was slow or gone, by message type.",
		}, []string{"type"}),
		SlowClientEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_client_evictions_total",
			Help:      "Total number of clients disconnected because their outbound queue was full.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "write_failures_total",
			Help:      "Total number of client connections dropped after a failed write.",
		}),
		RejectedConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "Total number of WebSocket upgrades rejected by admission limits, by reason.",
		}, []string{"reason"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent enqueueing one broadcast to every registered client.",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.FramesSent,
		m.FramesDropped,
		m.SlowClientEvictions,
		m.WriteFailures,
		m.RejectedConnections,
		m.BroadcastDuration,
	)
	return m
}
