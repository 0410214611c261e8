package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/jonboulle/clockwork"
)

const defaultStatsInterval = time.Minute

// StatsReporter periodically logs a relay summary and refreshes the per-namespace
// tracked-key gauge.
type StatsReporter struct {
	relay    *Relay
	metrics  *metrics.StateMetrics
	clock    clockwork.Clock
	interval time.Duration
}

func NewStatsReporter(relay *Relay, m *metrics.StateMetrics, clock clockwork.Clock) *StatsReporter {
	return &StatsReporter{
		relay:    relay,
		metrics:  m,
		clock:    clock,
		interval: defaultStatsInterval,
	}
}

// Run reports once per interval. It blocks until ctx is cancelled.
func (s *StatsReporter) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.report(ctx)
		}
	}
}

func (s *StatsReporter) report(ctx context.Context) {
	health := s.relay.Health()

	for ns, count := range health.Namespaces {
		s.metrics.TrackedKeys.WithLabelValues(ns).Set(float64(count))
	}

	slog.InfoContext(ctx, "Relay stats",
		"connected_clients", health.ConnectedClients,
		"tracked_keys", health.TrackedKeys,
		"bus_connected", health.BusConnected)
}
