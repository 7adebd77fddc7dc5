package common

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pennyworth/tally/internal/service"
)

// DefaultRetryOptions is the retry policy for the remote tabular store:
// 4 attempts total, 500ms initial delay doubling per attempt, plus up to
// 250ms of random jitter per wait.
func DefaultRetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Jitter:       250 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// WithRetry executes an operation with configurable retry behavior.
// Only errors for which retryable returns true are retried; all other
// errors surface immediately. The wait between attempts honors context
// cancellation.
func WithRetry(ctx context.Context, operation func() error, retryable func(error) bool, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if retryable == nil {
		retryable = IsRateLimit
	}

	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
		}

		wait := delay
		if opts.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(opts.Jitter)))
		}

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return ErrMaxRetries
}
