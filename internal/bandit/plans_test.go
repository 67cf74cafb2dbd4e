package bandit

import (
	"testing"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

type fakeCooling struct {
	down map[domain.Source]bool
}

func (f fakeCooling) CoolingDown(source domain.Source) bool {
	return f.down[source]
}

func allContexts() []domain.QueryContext {
	var out []domain.QueryContext
	for _, complexity := range []domain.Complexity{domain.ComplexitySimple, domain.ComplexityAmbiguous, domain.ComplexityComplex} {
		for _, recency := range []bool{false, true} {
			for _, official := range []bool{false, true} {
				out = append(out, domain.QueryContext{
					Intent:       "qa",
					Complexity:   complexity,
					Recency:      recency,
					OfficialOnly: official,
				})
			}
		}
	}
	return out
}

func TestCandidatePlansHonorBudgetInvariants(t *testing.T) {
	settings := DefaultSettings()

	coolingStates := []fakeCooling{
		{down: nil},
		{down: map[domain.Source]bool{domain.SourceWeb: true}},
		{down: map[domain.Source]bool{domain.SourceVector: true, domain.SourceGraph: true}},
	}

	for _, qctx := range allContexts() {
		for _, cooling := range coolingStates {
			plans := candidatePlans(settings, qctx, cooling)
			if len(plans) != len(domain.Arms()) {
				t.Fatalf("expected %d plans, got %d", len(domain.Arms()), len(plans))
			}
			for arm, plan := range plans {
				if plan.WebK < settings.MinPerSource || plan.VectorK < settings.MinPerSource || plan.GraphK < settings.MinPerSource {
					t.Fatalf("arm %s violates per-source floor: %+v", arm, plan)
				}
				if plan.Total() > settings.MaxTotalK {
					t.Fatalf("arm %s exceeds total cap: total=%d max=%d", arm, plan.Total(), settings.MaxTotalK)
				}
				if plan.PoolSize < settings.PoolFloor {
					t.Fatalf("arm %s pool below floor: %d", arm, plan.PoolSize)
				}
				if plan.MaxTotalK != settings.MaxTotalK {
					t.Fatalf("arm %s missing max total: %+v", arm, plan)
				}
			}
		}
	}
}

func TestComplexityScalesBudget(t *testing.T) {
	settings := DefaultSettings()

	simple := baselinePlan(settings, domain.QueryContext{Complexity: domain.ComplexitySimple})
	complex := baselinePlan(settings, domain.QueryContext{Complexity: domain.ComplexityComplex})

	if simple.Total() >= complex.Total() {
		t.Fatalf("simple budget %d should be below complex budget %d", simple.Total(), complex.Total())
	}
}

func TestRecencyShiftsBudgetTowardWeb(t *testing.T) {
	settings := DefaultSettings()

	plain := baselinePlan(settings, domain.QueryContext{Complexity: domain.ComplexityComplex})
	recent := baselinePlan(settings, domain.QueryContext{Complexity: domain.ComplexityComplex, Recency: true})

	if recent.WebK <= plain.WebK {
		t.Fatalf("recency should raise web budget: plain=%d recent=%d", plain.WebK, recent.WebK)
	}
}

func TestCoolingSourceClampedToFloor(t *testing.T) {
	settings := DefaultSettings()
	cooling := fakeCooling{down: map[domain.Source]bool{domain.SourceWeb: true}}

	plans := candidatePlans(settings, domain.QueryContext{Complexity: domain.ComplexityComplex}, cooling)

	healthy := candidatePlans(settings, domain.QueryContext{Complexity: domain.ComplexityComplex}, fakeCooling{})
	for arm, plan := range plans {
		if plan.WebK != settings.MinPerSource {
			t.Fatalf("arm %s: cooling web should be clamped to %d, got %d", arm, settings.MinPerSource, plan.WebK)
		}
		if plan.Total() > settings.MaxTotalK {
			t.Fatalf("arm %s: clamp broke total cap: %d", arm, plan.Total())
		}
		// Freed budget flows to healthy sources, vector first.
		if healthy[arm].WebK > settings.MinPerSource && plan.VectorK < healthy[arm].VectorK {
			t.Fatalf("arm %s: vector should absorb freed budget, healthy=%d clamped=%d", arm, healthy[arm].VectorK, plan.VectorK)
		}
	}
}

func TestNormalizePlanTrimsLargestBucket(t *testing.T) {
	settings := Settings{MinPerSource: 2, StepSize: 3, MaxTotalK: 12, PoolFloor: 16}.withDefaults()

	plan := normalizePlan(settings, domain.KPlan{WebK: 10, VectorK: 4, GraphK: 4})
	if plan.Total() != settings.MaxTotalK {
		t.Fatalf("expected total trimmed to %d, got %d", settings.MaxTotalK, plan.Total())
	}
	if plan.WebK >= 10 {
		t.Fatalf("excess should come out of the largest bucket, web still %d", plan.WebK)
	}
	if plan.VectorK < settings.MinPerSource || plan.GraphK < settings.MinPerSource {
		t.Fatalf("floor violated after trim: %+v", plan)
	}
}
