// Package resilience wraps outbound collaborator calls with bounded retries
// and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,

		BreakerEnabled:      true,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	return out
}

// Executor guards one named collaborator. A classifier decides which errors
// are worth retrying and which count against the breaker.
type Executor struct {
	cfg        Config
	classifier ErrorClassifier
	breaker    *gobreaker.CircuitBreaker[any]
}

func NewExecutor(name string, cfg Config, classifier ErrorClassifier) *Executor {
	cfg = cfg.normalize()
	if classifier == nil {
		classifier = defaultClassifier
	}

	e := &Executor{cfg: cfg, classifier: classifier}
	if cfg.BreakerEnabled {
		e.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    name,
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.BreakerMinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				return !classifier(err).RecordFailure
			},
		})
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if e.breaker == nil {
		return e.executeWithRetry(ctx, fn)
	}
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, fn)
	})
	return err
}

func (e *Executor) executeWithRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := e.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !e.classifier(err).Retryable || attempt == e.cfg.RetryMaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > e.cfg.RetryMaxBackoff {
			backoff = e.cfg.RetryMaxBackoff
		}
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{}
	}
	return ErrorClassification{Retryable: true, RecordFailure: true}
}
