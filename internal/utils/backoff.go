package utils

import (
	"context"
	"errors"
	"time"
)

type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do calls fn until it succeeds, the retries are spent or ctx is done,
// doubling the wait after each failure.
func (b Backoff) Do(ctx context.Context, fn func(i int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) {
			return p.err
		}
		if i == b.maxRetries {
			break
		}
		t := time.NewTimer(time.Duration(1<<i) * b.base)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error { return permanent{err} }
