package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/seisgate/seisgate/pkg/errors"
)

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	r := New(Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeIndexUnavailable,
		},
	})

	err := r.Do(func() error {
		attempts++
		if attempts < 2 {
			return errors.New(errors.ErrCodeIndexUnavailable, "down")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryGivesUpOnTerminalError(t *testing.T) {
	attempts := 0
	r := New(DefaultConfig())

	err := r.Do(func() error {
		attempts++
		return errors.New(errors.ErrCodeInvalidCoordinateRange, "out of bounds")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("terminal errors must not be retried, attempts = %d", attempts)
	}
}

func TestRetryNeverExceedsMaxAttempts(t *testing.T) {
	attempts := 0
	r := New(Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeOperationTimeout,
		},
	})

	err := r.Do(func() error {
		attempts++
		return errors.New(errors.ErrCodeOperationTimeout, "slow")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryPlainErrorsNotRetried(t *testing.T) {
	attempts := 0
	r := New(DefaultConfig())

	_ = r.Do(func() error {
		attempts++
		return fmt.Errorf("plain failure")
	})

	if attempts != 1 {
		t.Errorf("plain errors are not retryable, attempts = %d", attempts)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Config{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeIndexUnavailable,
		},
	})

	err := r.DoWithContext(ctx, func(ctx context.Context) error {
		return errors.New(errors.ErrCodeIndexUnavailable, "down")
	})

	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestOnRetryCallback(t *testing.T) {
	var callbackAttempts []int
	r := New(Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeWorkerBusy,
		},
	}).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		callbackAttempts = append(callbackAttempts, attempt)
	})

	_ = r.Do(func() error {
		return errors.New(errors.ErrCodeWorkerBusy, "full")
	})

	if len(callbackAttempts) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(callbackAttempts))
	}
}
