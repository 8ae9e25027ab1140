package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/ethereum/go-ethereum/rpc"

	"theragraph/internal/metrics"
)

// MaxDelay caps the doubling backoff.
const MaxDelay = 30 * time.Second

// Config bounds one retried operation.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Transient marks err as retryable regardless of its content.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether err is a transient provider, network or broker failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var permanent *permanentError
	if errors.As(err, &permanent) {
		return false
	}
	var transient *transientError
	if errors.As(err, &transient) {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		switch kafkaErr.Code() {
		case kafka.ErrQueueFull, kafka.ErrTimedOut, kafka.ErrMsgTimedOut, kafka.ErrTransport, kafka.ErrAllBrokersDown:
			return true
		}
		return kafkaErr.IsRetriable()
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	// Rate limiting
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "rate limit") {
		return true
	}

	if strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}

	if strings.Contains(errStr, "connection pool") ||
		strings.Contains(errStr, "no available connection") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") {
		return true
	}

	return false
}

// Backoff returns the delay before the attempt following attempt (1-based):
// the initial delay doubled per prior retry, capped at MaxDelay.
func Backoff(attempt int, initial time.Duration) time.Duration {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= MaxDelay {
			return MaxDelay
		}
	}
	if delay > MaxDelay {
		return MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, fails with a non-retryable error, or runs out
// of attempts. The last error is returned wrapped.
func Do[T any](ctx context.Context, cfg Config, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	startTime := time.Now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, maxAttempts, err)
		}
		if attempt >= maxAttempts {
			break
		}

		timer := time.NewTimer(Backoff(attempt, cfg.InitialDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w", attempt, maxAttempts, ctx.Err())
		case <-timer.C:
		}

		metrics.RetryInc(operation)
	}

	return zero, fmt.Errorf("all %d attempts failed after %v (last error: %w)", maxAttempts, time.Since(startTime), lastErr)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, cfg Config, operation string, fn func(context.Context) error) error {
	_, err := Do(ctx, cfg, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
