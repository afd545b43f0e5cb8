// Package retry runs calls to external services with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ExternalServiceError is returned once every attempt at a transient failure is used up.
type ExternalServiceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Delayer is implemented by errors carrying a server-requested wait.
type Delayer interface {
	RetryAfter() time.Duration
}

type Policy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
	// Retryable reports whether err is transient. Nil retries everything.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Min: 500 * time.Millisecond, Max: 10 * time.Second}
}

// Do calls op until it succeeds, returns a permanent error, or attempts run out.
func Do(ctx context.Context, name string, p Policy, op func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: 2, Jitter: true}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.Attempts {
			return &ExternalServiceError{Op: name, Attempts: attempt, Err: err}
		}

		wait := b.Duration()
		var d Delayer
		if errors.As(err, &d) && d.RetryAfter() > wait {
			wait = d.RetryAfter()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
		case <-timer.C:
		}
	}
}
