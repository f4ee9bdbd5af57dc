package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy shapes retries with exponential backoff and jitter. The zero value
// is usable; unset fields take the defaults noted on each one.
type Policy struct {
	// Attempts is the total number of tries, the first included; 1 means
	// no retries. Values below 1 fall back to 3.
	Attempts int

	// BaseDelay is the wait before the first retry. Default 200ms.
	BaseDelay time.Duration

	// MaxDelay caps the grown delay. Default 10s.
	MaxDelay time.Duration

	// Growth multiplies the delay after each failed try. Values below 1
	// fall back to 2.
	Growth float64

	// Jitter spreads each delay by up to ±Jitter of itself. Values
	// outside [0,1] disable it.
	Jitter float64

	// Retryable decides whether an error is worth another try. Nil means
	// IsTransient.
	Retryable func(error) bool

	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is tuned for dataset store reads: a quick first retry and
// modest growth, with jitter so concurrent reloads don't march in step.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Growth:    2.0,
		Jitter:    0.2,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, ctx ends, or a
// non-retryable error comes back. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that produce a value. On failure the zero T is
// returned alongside the last error.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || attempt >= p.Attempts || !retryable(err) {
			return zero, err
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Growth < 1 {
		p.Growth = 2.0
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0
	}
	return p
}

// delay computes the wait before the given retry, 1-based.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Growth, float64(attempt-1))
	d = math.Min(d, float64(p.MaxDelay))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * p.Jitter * d
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry hook that logs each retry under the given
// scope and operation.
func RetryLogger(scope, op string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying",
			zap.String("scope", scope),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
