package redis

import (
	"context"
	"fmt"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Client wraps the go-redis client used for the bus subscription and readiness checks.
type Client struct {
	rdb     *goredis.Client
	breaker *CircuitBreakerHook
	pings   singleflight.Group
}

// NewClient creates a client from a URL (e.g. "redis://localhost:6379"). It does not dial;
// the first command or subscription does. m may be nil to skip instrumentation.
func NewClient(redisURL string, m *metrics.RedisMetrics) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(&MetricsHook{metrics: m})
	}
	breaker := NewCircuitBreakerHook(m, defaultBreakerOpenPeriod)
	rdb.AddHook(breaker)

	return &Client{rdb: rdb, breaker: breaker}, nil
}

// Ping verifies the Redis connection. Concurrent callers share one PING and the
// first caller's context. While the command breaker is open Ping fails immediately
// with circuitbreaker.ErrOpen.
func (c *Client) Ping(ctx context.Context) error {
	_, err, _ := c.pings.Do("ping", func() (any, error) {
		return nil, c.rdb.Ping(ctx).Err()
	})
	return err
}

// Publish sends payload on channel. Used by tests and tooling that feed the bus.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
