// Package retry implements a bounded retry policy with exponential backoff
// and jitter, shared by every component that calls an external service.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/fwojciec/idedocs"
)

// Policy describes how a failing operation is retried.
type Policy struct {
	// Attempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	Attempts int

	// BaseDelay is the wait before the first retry. Later waits grow by
	// Multiplier and are capped at MaxDelay.
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Jitter adds a uniform random extra of up to Jitter*delay.
	Jitter float64

	// ShouldRetry reports whether err is worth another attempt.
	// Defaults to idedocs.IsRetryable.
	ShouldRetry func(err error) bool

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 4 attempts with delays starting at 1s and doubling.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   4,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// WithAttempts returns a copy of p with the given number of attempts.
func (p Policy) WithAttempts(n int) Policy {
	p.Attempts = n
	return p
}

// Delay returns the wait before retry number n (0-based) after err.
// A RetryAfter hint on err larger than the computed delay wins.
func (p Policy) Delay(n int, err error) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && d > 0 {
		d += rand.Float64() * p.Jitter * d
	}
	delay := time.Duration(d)
	if hint := idedocs.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	return delay
}

// Do calls fn until it succeeds, returns an error ShouldRetry rejects, or
// the attempts are exhausted. The last error is returned. If ctx is done
// while waiting, ctx.Err() is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = idedocs.IsRetryable
	}
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 || !shouldRetry(err) {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := p.Delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Value is like Do for operations that return a value.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var v T
	err := Do(ctx, p, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	return v, err
}
