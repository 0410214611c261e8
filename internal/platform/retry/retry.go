package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy is a fixed-delay retry policy with no attempt limit.
type Policy struct {
	Delay   time.Duration
	Clock   clockwork.Clock
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Operation is one attempt. It should block for as long as the work it does
// stays healthy and return when ctx is done.
type Operation func(ctx context.Context) error

// Forever runs op until ctx is cancelled, waiting p.Delay after every failed attempt.
// An attempt that returns nil ends the loop.
func Forever(ctx context.Context, p Policy, op Operation) error {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, p.Delay)
		}

		select {
		case <-clock.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
