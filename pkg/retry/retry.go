// Package retry runs fallible operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMaxAttempts indicates that all retry attempts have been exhausted.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// Permanent wraps an error to signal that retrying cannot help.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string {
	return e.Err.Error()
}

func (e *Permanent) Unwrap() error {
	return e.Err
}

// Options configures the backoff schedule.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (o *Options) defaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 200 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
}

// Delay returns the backoff delay before the given attempt (0-based),
// clamped to MaxDelay. Shared with the queue Nack path so redeliveries
// follow the same schedule as in-process retries.
func (o Options) Delay(attempt int) time.Duration {
	o.defaults()
	delay := o.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * o.Multiplier)
		if delay >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	if delay > o.MaxDelay {
		delay = o.MaxDelay
	}
	return delay
}

// Do executes operation until it succeeds, returns a Permanent error, the
// context is cancelled, or MaxAttempts is reached.
func Do(ctx context.Context, logger *slog.Logger, operation func() error, opts Options) error {
	opts.defaults()

	delay := opts.InitialDelay
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, opts.MaxAttempts, err)
		}

		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}
	return nil
}
