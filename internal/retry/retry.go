// Package retry wraps fallible operations with bounded exponential backoff and
// jitter. It is used for idempotent calls only (classification requests, page
// fetches); callers that cannot safely re-run an operation must not use it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/talonjobs/talon/internal/model"
)

// Policy controls backoff behavior. Attempt 1 runs immediately; each failure
// sleeps the current delay (with ±JitterFactor jitter applied) and then
// multiplies the delay by BackoffFactor.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultPolicy matches the tuning used for classification calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   10,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// ExhaustedError reports that every attempt failed. It wraps the last
// underlying error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, a non-retryable error occurs, ctx is
// cancelled, or p.MaxAttempts is consumed. Exhaustion surfaces as an
// *ExhaustedError wrapping the last failure, never a zero value posing as a
// result.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	currentDelay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := backoffDelay(currentDelay, p.JitterFactor, err)
		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		currentDelay = time.Duration(float64(currentDelay) * p.BackoffFactor)
	}

	logger.Error("max retry attempts reached",
		"attempts", p.MaxAttempts,
		"error", lastErr,
	)
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// backoffDelay applies jitter to the current delay. If the error carries a
// Retry-After duration (HTTP 429), that takes precedence over the computed
// backoff.
func backoffDelay(current time.Duration, jitterFactor float64, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	jitter := (rand.Float64()*2 - 1) * jitterFactor
	delay := time.Duration(float64(current) * (1 + jitter))
	if delay < 0 {
		delay = 0
	}
	return delay
}

// isRetryable returns true if the error represents a transient failure worth
// retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation — never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests and 5xx — retryable.
		if httpErr.StatusCode == 429 || httpErr.StatusCode >= 500 {
			return true
		}
		// Other 4xx — permanent for this item.
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) — retryable.
	return true
}
