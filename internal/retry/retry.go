// Package retry re-runs failing calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const defaultBaseDelay = 100 * time.Millisecond

// Policy bounds how often and how slowly a call is retried.
// The zero value runs the call once.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps the doubled delay; zero leaves it uncapped.
	MaxDelay time.Duration
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the context
// ends, or MaxRetries retries have failed.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	maxRetries := max(p.MaxRetries, 0)
	delay := p.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
