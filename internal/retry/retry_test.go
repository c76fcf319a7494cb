package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/talonjobs/talon/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), discardLogger(), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result: %q", got)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_SucceedsOnSecondAttempt_SleepsOnce(t *testing.T) {
	const delay = 20 * time.Millisecond
	p := Policy{MaxAttempts: 5, InitialDelay: delay, BackoffFactor: 2.0}

	calls := 0
	start := time.Now()
	got, err := Do(context.Background(), p, discardLogger(), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("unexpected result: %d", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	// Exactly one backoff sleep: at least the initial delay but well short of
	// the doubled second delay plus the first.
	if elapsed < 15*time.Millisecond {
		t.Errorf("expected at least one %v sleep, elapsed %v", delay, elapsed)
	}
	if elapsed > 55*time.Millisecond {
		t.Errorf("expected a single sleep, elapsed %v suggests more", elapsed)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("always fails")
	_, err := Do(context.Background(), fastPolicy(3), discardLogger(), func(_ context.Context) (string, error) {
		calls++
		return "", wantErr
	})

	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped underlying error, got %v", err)
	}
}

func TestDo_DoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), discardLogger(), func(_ context.Context) (string, error) {
		calls++
		return "", &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	})

	if calls != 1 {
		t.Fatalf("expected 1 call (no retry on 4xx), got %d", calls)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatal("4xx must not be reported as retries exhausted")
	}
}

func TestDo_HonorsRetryAfterOn429(t *testing.T) {
	const retryAfter = 50 * time.Millisecond
	calls := 0
	start := time.Now()
	got, err := Do(context.Background(), fastPolicy(3), discardLogger(), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &model.HTTPError{StatusCode: 429, RetryAfter: retryAfter}
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result: %q", got)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected Retry-After wait of ~%v, elapsed %v", retryAfter, elapsed)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	p := Policy{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2.0}
	_, err := Do(ctx, p, discardLogger(), func(_ context.Context) (string, error) {
		calls++
		cancel() // cancel before the backoff sleep starts
		return "", errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}
