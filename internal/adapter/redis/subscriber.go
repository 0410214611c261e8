package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/retry"
	"github.com/jonboulle/clockwork"
)

// DefaultReconnectDelay is the wait between a lost subscription and the next attempt.
const DefaultReconnectDelay = 5 * time.Second

// MessageHandler processes one bus message. A returned error discards that message only.
type MessageHandler interface {
	HandleMessage(ctx context.Context, channel string, payload []byte) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(ctx context.Context, channel string, payload []byte) error

func (f MessageHandlerFunc) HandleMessage(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}

// Subscriber owns the bus subscription. Messages are handled one at a time, in the
// order they arrive, on the goroutine that called Run.
type Subscriber struct {
	client   *Client
	channels []string
	handler  MessageHandler
	metrics  *metrics.BusMetrics
	clock    clockwork.Clock
	delay    time.Duration

	connected  atomic.Bool
	subscribed atomic.Bool
}

func NewSubscriber(client *Client, channels []string, handler MessageHandler, m *metrics.BusMetrics, clock clockwork.Clock, delay time.Duration) *Subscriber {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Subscriber{
		client:   client,
		channels: channels,
		handler:  handler,
		metrics:  m,
		clock:    clock,
		delay:    delay,
	}
}

// Connected reports whether the subscription is currently established.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// HasSubscribed reports whether the subscription was established at least once.
func (s *Subscriber) HasSubscribed() bool {
	return s.subscribed.Load()
}

// Run subscribes and reads until ctx is cancelled. Connection failures are retried
// forever after a fixed delay; Run only returns ctx's error.
func (s *Subscriber) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting bus subscriber", "channels", s.channels, "reconnect_delay", s.delay)

	err := retry.Forever(ctx, retry.Policy{
		Delay: s.delay,
		Clock: s.clock,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.metrics.Reconnects.Inc()
			slog.WarnContext(ctx, "Bus connection lost, reconnecting", "attempt", attempt, "error", err, "delay", delay)
		},
	}, s.listen)

	slog.InfoContext(ctx, "Bus subscriber stopped")
	return err
}

// listen runs one subscription until it fails or ctx is done.
func (s *Subscriber) listen(ctx context.Context) error {
	ps := s.client.rdb.Subscribe(ctx, s.channels...)
	// Blocking reads ignore ctx cancellation; closing the PubSub unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer func() {
		stop()
		_ = ps.Close()
	}()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", s.channels, err)
	}

	s.setConnected(true)
	defer s.setConnected(false)
	slog.InfoContext(ctx, "Subscribed to bus", "channels", s.channels)

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}

		s.metrics.MessagesReceived.WithLabelValues(msg.Channel).Inc()
		if err := s.handler.HandleMessage(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
			s.metrics.DecodeErrors.WithLabelValues(msg.Channel).Inc()
			slog.WarnContext(ctx, "Discarding bus message", "channel", msg.Channel, "error", err)
		}
	}
}

func (s *Subscriber) setConnected(connected bool) {
	s.connected.Store(connected)
	if connected {
		s.subscribed.Store(true)
		s.metrics.Connected.Set(1)
	} else {
		s.metrics.Connected.Set(0)
	}
}
