// Package retry implements exponential backoff for rate-limited remote calls.
//
// Only rate-limit failures are retried. Everything else, including plain
// timeouts, is returned to the caller on the first attempt so latency stays
// bounded.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults used by DefaultPolicy.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// ErrRateLimited marks an error as belonging to the rate-limit class.
var ErrRateLimited = errors.New("rate limit exceeded")

// StatusError carries a transport status code and reason so the policy can
// classify a failure without knowing which API produced it.
type StatusError struct {
	Code   int
	Reason string
	Err    error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("status %d", e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

var rateLimitReasons = map[string]bool{
	"rate_limit_exceeded":   true,
	"ratelimitexceeded":     true,
	"userratelimitexceeded": true,
}

// IsRateLimited reports whether err is worth retrying: an HTTP 403 or 429,
// a rate-limit reason, or an error wrapping ErrRateLimited.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == 403 || se.Code == 429 {
			return true
		}
		return rateLimitReasons[strings.ToLower(se.Reason)]
	}
	return false
}

// Policy retries an operation with capped exponential backoff.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns a policy with three retries, 1s initial delay and a
// 10s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Delay returns the backoff before retry number attempt (zero-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op, retrying rate-limited failures up to MaxRetries times.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do runs op under policy p and returns its result.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimited(err) || attempt >= p.MaxRetries {
			return result, err
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, errors.Join(serr, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
