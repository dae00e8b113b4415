// Package retry implements the bounded retry policy applied around transient
// failures: a fixed number of attempts with doubling backoff under a cap.
// Classification of what is retryable belongs to the caller; a 4xx-style
// permanent failure must never be retried.
package retry

import (
	"context"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	BackoffCap  time.Duration
}

// Do runs fn until it succeeds, fails permanently, or attempts are exhausted.
// retryable classifies errors; backoff doubles each attempt up to the cap and
// honors context cancellation.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := p.BaseBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || attempt >= attempts || !retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if p.BackoffCap > 0 && backoff > p.BackoffCap {
			backoff = p.BackoffCap
		}
	}
}
