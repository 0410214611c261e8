package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	breakerFailureRate       = 0.6
	breakerMinExecutions     = 5
	breakerFailureWindow     = 10 * time.Second
	defaultBreakerOpenPeriod = 30 * time.Second
)

// handshakeCommands are issued by go-redis while initialising a new connection.
var handshakeCommands = map[string]bool{"hello": true, "auth": true, "select": true}

// CircuitBreakerHook fails commands fast while Redis keeps erroring, so readiness
// checks answer immediately instead of waiting out dial retries.
//
// Only the command path is guarded. Dials and connection handshake commands pass
// straight through: the subscription dials through this client too, and its reconnect
// cadence is fixed by the subscriber.
type CircuitBreakerHook struct {
	cb      circuitbreaker.CircuitBreaker[any]
	metrics *metrics.RedisMetrics
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook opens after a 60% failure rate over at least 5 commands within
// 10s and lets one trial command through after openPeriod. m may be nil.
func NewCircuitBreakerHook(m *metrics.RedisMetrics, openPeriod time.Duration) *CircuitBreakerHook {
	if openPeriod <= 0 {
		openPeriod = defaultBreakerOpenPeriod
	}

	h := &CircuitBreakerHook{metrics: m}
	h.cb = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(breakerFailureRate, breakerMinExecutions, breakerFailureWindow).
		WithDelay(openPeriod).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Redis circuit breaker state changed", "from", e.OldState.String(), "to", e.NewState.String())
			if h.metrics != nil {
				h.metrics.BreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
				h.metrics.BreakerState.Set(stateValue(e.NewState))
			}
		}).
		Build()
	return h
}

// State reports the breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if handshakeCommands[cmd.Name()] {
			return next(ctx, cmd)
		}
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis %s: %w", cmd.Name(), circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func stateValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
