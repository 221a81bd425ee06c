package repository

import (
	"context"
	"errors"
	"time"
)

// WithReadRetry runs fn, retrying up to attempts times with a doubling
// delay while the failure is ErrUnavailable.  Only idempotent reads may
// be wrapped; writes such as Create or Add must never be retried because
// a timed-out write may still have committed.
func WithReadRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
