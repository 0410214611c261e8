package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

// generousRate keeps the token bucket out of the way of count-limit tests.
const generousRate = 1000

func TestConnectionLimits_GlobalLimit(t *testing.T) {
	limits := NewConnectionLimits(2, 10, generousRate, generousRate, clockwork.NewFakeClock())

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)
	assert.Equal(t, http.StatusServiceUnavailable, reason.HTTPStatus())

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
	assert.Equal(t, 2, limits.Current())
}

func TestConnectionLimits_PerIPLimitRollsBackGlobal(t *testing.T) {
	limits := NewConnectionLimits(10, 2, generousRate, generousRate, clockwork.NewFakeClock())

	for range 2 {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)
	}

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, http.StatusTooManyRequests, reason.HTTPStatus())
	assert.Equal(t, 2, limits.Current())

	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)
}

func TestConnectionLimits_ReleaseForgetsIdleIP(t *testing.T) {
	limits := NewConnectionLimits(10, 2, generousRate, generousRate, clockwork.NewFakeClock())

	limits.Acquire("10.0.0.1")
	limits.Acquire("10.0.0.1")
	assert.Equal(t, 2, limits.perIP.count("10.0.0.1"))

	limits.Release("10.0.0.1")
	limits.Release("10.0.0.1")
	assert.Equal(t, 0, limits.perIP.count("10.0.0.1"))
	assert.Empty(t, limits.perIP.ips)
	assert.Equal(t, 0, limits.Current())
}

func TestConnectionLimits_RateLimitRefills(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(100, 100, 1, 2, clock)

	for range 2 {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)
	}

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)

	// Other IPs have their own bucket.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)
}

func TestConnectionLimits_IdleRateLimitersCleanedUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(100, 100, 10, 10, clock)

	limits.Acquire("10.0.0.1")
	limits.Acquire("10.0.0.2")
	assert.Equal(t, 2, limits.rate.size())

	clock.Advance(rateLimiterIdleTimeout + time.Minute)
	limits.Acquire("10.0.0.3")
	assert.Equal(t, 1, limits.rate.size())
}

func TestConnectionLimits_Concurrent(t *testing.T) {
	limits := NewConnectionLimits(100, 1000, generousRate, generousRate, clockwork.NewFakeClock())
	var successCount, failCount atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			<-start
			if ok, _ := limits.Acquire("10.0.0.1"); ok {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		})
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), successCount.Load())
	assert.Equal(t, int64(100), failCount.Load())
}
