package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// GuardedSource wraps a candidate source with retry and a circuit breaker.
// Every remote source goes through one of these so repeated failures trip
// the breaker and surface as a cooling signal to the budget allocator.
type GuardedSource struct {
	inner     ports.CandidateSource
	executor  *Executor
	operation string
}

func NewGuardedSource(inner ports.CandidateSource, executor *Executor) *GuardedSource {
	return &GuardedSource{
		inner:     inner,
		executor:  executor,
		operation: sourceOperation(inner.Name()),
	}
}

func (g *GuardedSource) Name() domain.Source {
	return g.inner.Name()
}

func (g *GuardedSource) Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	err := g.executor.Execute(ctx, g.operation, func(ctx context.Context) error {
		fetched, err := g.inner.Fetch(ctx, query, k)
		if err != nil {
			return err
		}
		candidates = fetched
		return nil
	}, classifySourceError)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func classifySourceError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) || domain.IsKind(err, domain.ErrTemporary) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

// SourceCooling exposes breaker state as the allocator's cooling signal.
// Implements ports.CoolingSignal.
type SourceCooling struct {
	executor *Executor
}

func NewSourceCooling(executor *Executor) *SourceCooling {
	return &SourceCooling{executor: executor}
}

func (c *SourceCooling) CoolingDown(source domain.Source) bool {
	if c.executor == nil {
		return false
	}
	return c.executor.BreakerOpen(sourceOperation(source))
}

func sourceOperation(source domain.Source) string {
	return "source." + string(source)
}
