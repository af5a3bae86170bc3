package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor("test", fastConfig(), nil)

	attempts := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor("test", fastConfig(), nil)

	attempts := 0
	failure := errors.New("still broken")
	err := exec.Execute(context.Background(), func(context.Context) error {
		attempts++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the last error returned, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly max attempts, got %d", attempts)
	}
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	exec := NewExecutor("test", fastConfig(), classifier)

	attempts := 0
	err := exec.Execute(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("bad request")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected a single failing attempt, got %d attempts, err %v", attempts, err)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor("test", fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Execute(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", attempts)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor("test", cfg, nil)

	failure := errors.New("down")
	for i := 0; i < 2; i++ {
		if err := exec.Execute(context.Background(), func(context.Context) error { return failure }); !errors.Is(err, failure) {
			t.Fatalf("attempt %d: expected the raw failure, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), func(context.Context) error { return nil })
	if !IsCircuitOpen(err) {
		t.Fatalf("expected an open circuit, got %v", err)
	}
}

func TestDefaultClassifierSparesContextErrors(t *testing.T) {
	if c := defaultClassifier(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("context cancellation must not retry or trip the breaker, got %+v", c)
	}
	if c := defaultClassifier(errors.New("boom")); !c.Retryable || !c.RecordFailure {
		t.Fatalf("unknown errors default to retryable failures, got %+v", c)
	}
}

func TestExecuteRejectsNilCallback(t *testing.T) {
	exec := NewExecutor("test", fastConfig(), nil)
	if err := exec.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a nil callback")
	}
}
