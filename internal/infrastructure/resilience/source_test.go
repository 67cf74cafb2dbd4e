package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

type flakySource struct {
	name  domain.Source
	err   error
	calls int
}

func (f *flakySource) Name() domain.Source {
	return f.name
}

func (f *flakySource) Fetch(context.Context, string, int) ([]domain.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Candidate{{ID: "hit", Source: f.name}}, nil
}

func breakerTestConfig() Config {
	return Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func TestGuardedSourcePassesThrough(t *testing.T) {
	exec := NewExecutor(breakerTestConfig())
	inner := &flakySource{name: domain.SourceWeb}
	guarded := NewGuardedSource(inner, exec)

	candidates, err := guarded.Fetch(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "hit" {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
	if guarded.Name() != domain.SourceWeb {
		t.Fatalf("name should delegate, got %s", guarded.Name())
	}
}

func TestRepeatedFailuresTripCoolingSignal(t *testing.T) {
	exec := NewExecutor(breakerTestConfig())
	inner := &flakySource{
		name: domain.SourceVector,
		err:  domain.WrapError(domain.ErrTemporary, "vector.search", errors.New("connection refused")),
	}
	guarded := NewGuardedSource(inner, exec)
	cooling := NewSourceCooling(exec)

	if cooling.CoolingDown(domain.SourceVector) {
		t.Fatalf("fresh breaker must not report cooling")
	}

	for i := 0; i < 5; i++ {
		if _, err := guarded.Fetch(context.Background(), "query", 3); err == nil {
			t.Fatalf("expected failure")
		}
	}

	if !cooling.CoolingDown(domain.SourceVector) {
		t.Fatalf("breaker should be open after repeated failures")
	}
	if cooling.CoolingDown(domain.SourceWeb) {
		t.Fatalf("untouched source must not report cooling")
	}
}

func TestCancellationDoesNotTripBreaker(t *testing.T) {
	exec := NewExecutor(breakerTestConfig())
	inner := &flakySource{name: domain.SourceGraph, err: context.Canceled}
	guarded := NewGuardedSource(inner, exec)
	cooling := NewSourceCooling(exec)

	for i := 0; i < 5; i++ {
		if _, err := guarded.Fetch(context.Background(), "query", 3); err == nil {
			t.Fatalf("expected failure")
		}
	}

	if cooling.CoolingDown(domain.SourceGraph) {
		t.Fatalf("cancellations must not count as breaker failures")
	}
}
