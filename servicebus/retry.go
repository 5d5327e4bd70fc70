package servicebus

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// RetryPolicy bounds event handler attempts. The wait before retry n (0-based) is
// min(Base * 2^n, Cap). Commands are never retried.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration // zero or negative means uncapped

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 5 attempts with 100ms base and 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultEventRetrying,
		Base:        DefaultBackoffBase,
		Cap:         DefaultBackoffCap,
	}
}

// WithAttempts returns a copy of p with a different attempt budget; n < 1 keeps p's budget.
func (p RetryPolicy) WithAttempts(n int) RetryPolicy {
	if n >= 1 {
		p.MaxAttempts = n
	}

	return p
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}

	return p.MaxAttempts
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	initial, maxInterval := p.Base, p.Cap
	if maxInterval <= 0 {
		maxInterval = time.Duration(math.MaxInt64)
	}

	// MaxInterval only bounds increments, not the first interval.
	if initial > maxInterval {
		initial = maxInterval
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxInterval,
	}
	b.Reset()

	return b
}

// Delays lists the waits Run performs between attempts when every attempt fails.
func (p RetryPolicy) Delays() []time.Duration {
	n := p.attempts() - 1
	out := make([]time.Duration, 0, n)

	if p.Base <= 0 {
		return append(out, make([]time.Duration, n)...)
	}

	b := p.newBackOff()
	for range n {
		out = append(out, b.NextBackOff())
	}

	return out
}

// Run calls fn until it succeeds or the attempt budget is spent. attempt is 1-based.
// It returns the number of attempts made and, on exhaustion, an error wrapping
// ErrRetryExhausted and the last cause. Only ctx cancellation cuts a wait short.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	limit := p.attempts()
	b := p.newBackOff()

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}

		if attempt >= limit {
			return attempt, fmt.Errorf("%w after %d attempts: %w", berr.ErrRetryExhausted, attempt, err)
		}

		wait := time.Duration(0)
		if p.Base > 0 {
			wait = b.NextBackOff()
		}

		if serr := p.wait(ctx, wait); serr != nil {
			return attempt, fmt.Errorf("retry wait: %w", serr)
		}
	}
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}

	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
