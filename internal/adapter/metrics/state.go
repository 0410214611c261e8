package metrics

import "github.com/prometheus/client_golang/prometheus"

// StateMetrics holds Prometheus metrics for the latest-value store.
type StateMetrics struct {
	TrackedKeys *prometheus.GaugeVec
}

// NewStateMetrics creates and registers state metrics on the given registry.
func NewStateMetrics(reg prometheus.Registerer) *StateMetrics {
	m := &StateMetrics{
		TrackedKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "tracked_keys",
			Help:      "Number of keys holding a latest value, by namespace.",
		}, []string{"namespace"}),
	}

	reg.MustRegister(m.TrackedKeys)
	return m
}
