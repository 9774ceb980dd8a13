// Package retry provides bounded retry with exponential backoff for the
// transient failures this service meets on every turn: vector index reads
// and chat-completion calls.
//
// Usage:
//
//	err := retry.Do(ctx, retry.Policy{Attempts: 3, BaseDelay: 250 * time.Millisecond}, func(attempt int) error {
//	    return client.Call(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	// Attempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// BaseDelay is the wait before the second attempt; each subsequent wait
	// doubles until CapDelay.
	BaseDelay time.Duration
	// CapDelay bounds the per-attempt wait.
	CapDelay time.Duration
	// Retryable classifies errors. A nil predicate retries every non-nil
	// error. Returning false stops immediately and surfaces that error.
	Retryable func(err error) bool
}

// DefaultPolicy suits short network calls made inside a single user turn.
var DefaultPolicy = Policy{
	Attempts:  3,
	BaseDelay: 250 * time.Millisecond,
	CapDelay:  5 * time.Second,
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// fn receives the 1-based attempt number. The error from the last attempt
// is returned; context cancellation is joined onto it so callers can match
// either cause.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.CapDelay <= 0 {
		p.CapDelay = DefaultPolicy.CapDelay
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}

		slog.Debug("retry: attempt failed",
			"attempt", attempt, "of", p.Attempts, "delay", delay, "err", lastErr)

		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.CapDelay {
			delay = p.CapDelay
		}
	}

	return lastErr
}
