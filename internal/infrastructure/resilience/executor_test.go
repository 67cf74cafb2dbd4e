package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFetchTimeout = errors.New("fetch timeout")

func retryingClassifier(err error) ErrorClassification {
	return ErrorClassification{
		Retryable:     errors.Is(err, errFetchTimeout),
		RecordFailure: true,
	}
}

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTransientFetchFailures(t *testing.T) {
	cases := []struct {
		name         string
		failUntil    int
		fetchErr     error
		wantAttempts int
		wantErr      error
	}{
		{name: "recovers on third attempt", failUntil: 3, fetchErr: errFetchTimeout, wantAttempts: 3},
		{name: "gives up after max attempts", failUntil: 10, fetchErr: errFetchTimeout, wantAttempts: 3, wantErr: errFetchTimeout},
		{name: "bad request is not retried", failUntil: 10, fetchErr: errors.New("bad request"), wantAttempts: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := NewExecutor(fastRetryConfig())

			attempts := 0
			err := exec.Execute(context.Background(), "source.web", func(context.Context) error {
				attempts++
				if attempts < tc.failUntil {
					return tc.fetchErr
				}
				return nil
			}, retryingClassifier)

			wantErr := tc.wantErr
			if wantErr == nil && tc.wantAttempts < tc.failUntil {
				wantErr = tc.fetchErr
			}
			if wantErr != nil {
				if !errors.Is(err, wantErr) {
					t.Fatalf("expected %v, got %v", wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected recovery, got %v", err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, attempts)
			}
		})
	}
}

func breakerConfig() Config {
	return Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func failFetch(context.Context) error { return errFetchTimeout }

func TestRepeatedFetchFailuresOpenTheBreaker(t *testing.T) {
	exec := NewExecutor(breakerConfig())

	for i := 0; i < 2; i++ {
		if err := exec.Execute(context.Background(), "source.vector", failFetch, retryingClassifier); !errors.Is(err, errFetchTimeout) {
			t.Fatalf("expected fetch error on call %d, got %v", i, err)
		}
	}
	if !exec.BreakerOpen("source.vector") {
		t.Fatalf("expected breaker open after repeated failures")
	}

	err := exec.Execute(context.Background(), "source.vector", func(context.Context) error {
		t.Fatalf("open breaker must not invoke the fetch")
		return nil
	}, retryingClassifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestBreakersAreIsolatedPerSource(t *testing.T) {
	exec := NewExecutor(breakerConfig())

	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "source.graph", failFetch, retryingClassifier)
	}

	if !exec.BreakerOpen("source.graph") {
		t.Fatalf("expected graph breaker open")
	}
	if exec.BreakerOpen("source.web") {
		t.Fatalf("web breaker must be unaffected by graph failures")
	}

	called := false
	if err := exec.Execute(context.Background(), "source.web", func(context.Context) error {
		called = true
		return nil
	}, retryingClassifier); err != nil {
		t.Fatalf("healthy source must keep serving: %v", err)
	}
	if !called {
		t.Fatalf("healthy source fetch was not invoked")
	}
}

func TestBreakerOpenIsFalseForUnknownOperation(t *testing.T) {
	exec := NewExecutor(breakerConfig())
	if exec.BreakerOpen("source.never-called") {
		t.Fatalf("operation without traffic must not report open")
	}
}
