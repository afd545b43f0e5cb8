package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Min: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "send", fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "send", fastPolicy(2), func(context.Context) error {
		calls++
		return errTransient
	})
	var ext *ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("err = %v, want ExternalServiceError", err)
	}
	if ext.Attempts != 2 || calls != 2 {
		t.Errorf("attempts = %d calls = %d", ext.Attempts, calls)
	}
	if !errors.Is(err, errTransient) {
		t.Error("cause should be unwrappable")
	}
}

func TestDoPermanentError(t *testing.T) {
	permanent := errors.New("not found")
	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	calls := 0
	err := Do(context.Background(), "delete", p, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

type slowDown struct{}

func (slowDown) Error() string { return "slow down" }
func (slowDown) RetryAfter() time.Duration { return time.Hour }

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, "send", fastPolicy(3), func(context.Context) error {
		calls++
		return slowDown{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}
