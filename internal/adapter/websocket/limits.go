package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 10 * time.Minute
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// HTTPStatus is the status returned to a rejected upgrade request.
func (r LimitReason) HTTPStatus() int {
	if r == LimitReasonGlobal {
		return http.StatusServiceUnavailable
	}
	return http.StatusTooManyRequests
}

// globalLimiter caps concurrent connections per instance.
type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() {
	l.current.Add(-1)
}

// ipLimiter caps concurrent connections per client IP.
type ipLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

func (l *ipLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

// rateLimiter is a token bucket of new connections per IP.
type rateLimiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanup(now)
		l.cleanupAt = now.Add(rateLimiterCleanupInterval)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}

	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Must be called with mu held.
func (l *rateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rateLimiterIdleTimeout)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// ConnectionLimits gates websocket upgrades by upgrade rate, per-IP count and global count.
type ConnectionLimits struct {
	global *globalLimiter
	perIP  *ipLimiter
	rate   *rateLimiter
}

func NewConnectionLimits(globalMax, perIPMax int, connectionsPerSecond float64, burst int, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		global: &globalLimiter{max: int64(globalMax)},
		perIP:  &ipLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &rateLimiter{
			clock:     clock,
			limiters:  make(map[string]*rateLimiterEntry),
			rate:      rate.Limit(connectionsPerSecond),
			burst:     burst,
			cleanupAt: clock.Now().Add(rateLimiterCleanupInterval),
		},
	}
}

// Acquire takes a slot for ip. On success the caller must Release it when the
// connection ends.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.allow(ip) {
		return false, LimitReasonRate
	}

	if !l.global.acquire() {
		return false, LimitReasonGlobal
	}

	if !l.perIP.acquire(ip) {
		l.global.release()
		return false, LimitReasonPerIP
	}

	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int {
	return int(l.global.current.Load())
}
