package metrics

import "github.com/prometheus/client_golang/prometheus"

// BusMetrics holds Prometheus metrics for the upstream pub/sub subscription.
type BusMetrics struct {
	Connected        prometheus.Gauge
	Reconnects       prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	DecodeErrors     *prometheus.CounterVec
}

// NewBusMetrics creates and registers bus metrics on the given registry.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "connected",
			Help:      "1 while the bus subscription is established, 0 while reconnecting.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "reconnects_total",
			Help:      "Total number of times the bus subscription was lost and retried.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_received_total",
			Help:      "Total number of pub/sub messages received, by channel.",
		}, []string{"channel"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "decode_errors_total",
			Help:      "Total number of pub/sub messages discarded as malformed, by channel.",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.Connected, m.Reconnects, m.MessagesReceived, m.DecodeErrors)
	return m
}
