package common

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/pennyworth/tally/internal/service"
)

func fastRetryOptions(maxAttempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Jitter:       time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetry_SucceedsAfterRateLimits(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		if calls <= 3 {
			return ErrRateLimit
		}
		return nil
	}

	err := WithRetry(context.Background(), op, IsRateLimit, fastRetryOptions(4))
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		return ErrRateLimit
	}

	err := WithRetry(context.Background(), op, IsRateLimit, fastRetryOptions(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 4, calls)
}

func TestWithRetry_NonRetryableFailsFast(t *testing.T) {
	permanent := errors.New("schema mismatch")
	calls := 0
	op := func() error {
		calls++
		return permanent
	}

	err := WithRetry(context.Background(), op, IsRateLimit, fastRetryOptions(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestWithRetry_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	op := func() error {
		calls++
		cancel()
		return ErrRateLimit
	}

	opts := fastRetryOptions(4)
	opts.InitialDelay = time.Minute // would hang without cancellation

	err := WithRetry(ctx, op, IsRateLimit, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_DefaultsApplied(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		return errors.New("nope")
	}

	err := WithRetry(context.Background(), op, func(error) bool { return false }, service.RetryOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: ErrRateLimit, want: true},
		{name: "wrapped sentinel", err: &RetryableError{Err: ErrRateLimit, Retryable: true}, want: true},
		{name: "googleapi 429", err: &googleapi.Error{Code: http.StatusTooManyRequests}, want: true},
		{name: "googleapi quota message", err: &googleapi.Error{Code: http.StatusForbidden, Message: "Quota exceeded for quota metric"}, want: true},
		{name: "googleapi rate limit message", err: &googleapi.Error{Code: http.StatusForbidden, Message: "Rate Limit Exceeded"}, want: true},
		{name: "googleapi 500", err: &googleapi.Error{Code: http.StatusInternalServerError, Message: "backend error"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "marked non-retryable", err: &RetryableError{Err: errors.New("boom"), Retryable: false}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}
