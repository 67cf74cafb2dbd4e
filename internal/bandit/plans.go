package bandit

import (
	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// Settings are the runtime knobs of the allocator. Zero values are replaced
// by DefaultSettings at construction.
type Settings struct {
	MinPerSource    int
	StepSize        int
	MaxTotalK       int
	PoolFloor       int
	RecencyKeywords []string
	Epsilon         float64
	ExplorationC    float64
	RewardMin       float64
	RewardMax       float64
	FlushMinSeconds int
}

func DefaultSettings() Settings {
	return Settings{
		MinPerSource: 2,
		StepSize:     3,
		MaxTotalK:    24,
		PoolFloor:    32,
		RecencyKeywords: []string{
			"latest", "today", "yesterday", "this week", "news", "release", "changelog",
		},
		Epsilon:         0.05,
		ExplorationC:    1.4,
		RewardMin:       -1,
		RewardMax:       1,
		FlushMinSeconds: 30,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MinPerSource <= 0 {
		s.MinPerSource = d.MinPerSource
	}
	if s.StepSize <= 0 {
		s.StepSize = d.StepSize
	}
	if s.MaxTotalK <= 0 {
		s.MaxTotalK = d.MaxTotalK
	}
	if s.PoolFloor <= 0 {
		s.PoolFloor = d.PoolFloor
	}
	if len(s.RecencyKeywords) == 0 {
		s.RecencyKeywords = d.RecencyKeywords
	}
	if s.Epsilon < 0 {
		s.Epsilon = 0
	}
	if s.ExplorationC <= 0 {
		s.ExplorationC = d.ExplorationC
	}
	if s.RewardMin >= s.RewardMax {
		s.RewardMin = d.RewardMin
		s.RewardMax = d.RewardMax
	}
	if s.FlushMinSeconds <= 0 {
		s.FlushMinSeconds = d.FlushMinSeconds
	}
	return s
}

func complexityScale(c domain.Complexity) float64 {
	switch c {
	case domain.ComplexitySimple:
		return 0.55
	case domain.ComplexityAmbiguous:
		return 0.80
	default:
		return 1.00
	}
}

// baselinePlan is the heuristic a fresh deployment runs on before any
// rewards arrive. Budget scales with query complexity; recency-sensitive
// queries shift one step from vector toward web.
func baselinePlan(s Settings, qctx domain.QueryContext) domain.KPlan {
	budget := int(float64(s.MaxTotalK) * complexityScale(qctx.Complexity))
	if budget < 3*s.MinPerSource {
		budget = 3 * s.MinPerSource
	}

	web := budget * 4 / 10
	vector := budget * 4 / 10
	graph := budget - web - vector

	if qctx.Recency {
		web += s.StepSize
		vector -= s.StepSize
	}
	if qctx.OfficialOnly {
		graph += s.StepSize
		web -= s.StepSize
	}

	return normalizePlan(s, domain.KPlan{WebK: web, VectorK: vector, GraphK: graph})
}

// candidatePlans derives the full arm set from the baseline. Every plan
// honors the per-source floor and the total cap, and cooling sources are
// clamped afterwards.
func candidatePlans(s Settings, qctx domain.QueryContext, cooling ports.CoolingSignal) map[domain.Arm]domain.KPlan {
	base := baselinePlan(s, qctx)
	step := s.StepSize

	plans := map[domain.Arm]domain.KPlan{
		domain.ArmBaseline: base,
		domain.ArmWebHeavy: {
			WebK: base.WebK + 2*step, VectorK: base.VectorK - step, GraphK: base.GraphK - step,
		},
		domain.ArmVectorHeavy: {
			WebK: base.WebK - step, VectorK: base.VectorK + 2*step, GraphK: base.GraphK - step,
		},
		domain.ArmGraphHeavy: {
			WebK: base.WebK - step, VectorK: base.VectorK - step, GraphK: base.GraphK + 2*step,
		},
		domain.ArmCostSaver: {
			WebK: base.WebK - step, VectorK: base.VectorK - step, GraphK: base.GraphK - step,
		},
	}

	for arm, plan := range plans {
		plan = normalizePlan(s, plan)
		if cooling != nil {
			plan = clampCooling(s, plan, cooling)
		}
		plans[arm] = plan
	}
	return plans
}

// normalizePlan raises each bucket to the floor, then trims any excess over
// the total cap from the largest bucket first.
func normalizePlan(s Settings, plan domain.KPlan) domain.KPlan {
	if plan.WebK < s.MinPerSource {
		plan.WebK = s.MinPerSource
	}
	if plan.VectorK < s.MinPerSource {
		plan.VectorK = s.MinPerSource
	}
	if plan.GraphK < s.MinPerSource {
		plan.GraphK = s.MinPerSource
	}

	for plan.Total() > s.MaxTotalK {
		switch largestBucket(plan) {
		case domain.SourceWeb:
			if plan.WebK <= s.MinPerSource {
				return finishPlan(s, plan)
			}
			plan.WebK--
		case domain.SourceVector:
			if plan.VectorK <= s.MinPerSource {
				return finishPlan(s, plan)
			}
			plan.VectorK--
		default:
			if plan.GraphK <= s.MinPerSource {
				return finishPlan(s, plan)
			}
			plan.GraphK--
		}
	}
	return finishPlan(s, plan)
}

func finishPlan(s Settings, plan domain.KPlan) domain.KPlan {
	plan.MaxTotalK = s.MaxTotalK
	plan.PoolSize = plan.Total() * 2
	if plan.PoolSize < s.PoolFloor {
		plan.PoolSize = s.PoolFloor
	}
	return plan
}

func largestBucket(plan domain.KPlan) domain.Source {
	switch {
	case plan.WebK >= plan.VectorK && plan.WebK >= plan.GraphK:
		return domain.SourceWeb
	case plan.VectorK >= plan.GraphK:
		return domain.SourceVector
	default:
		return domain.SourceGraph
	}
}

// clampCooling drops a cooling source to the floor and hands the freed
// budget to healthy sources, vector first, then graph, then web.
func clampCooling(s Settings, plan domain.KPlan, cooling ports.CoolingSignal) domain.KPlan {
	freed := 0
	coolingSources := map[domain.Source]bool{}

	for _, source := range []domain.Source{domain.SourceWeb, domain.SourceVector, domain.SourceGraph} {
		if !cooling.CoolingDown(source) {
			continue
		}
		coolingSources[source] = true
		switch source {
		case domain.SourceWeb:
			freed += plan.WebK - s.MinPerSource
			plan.WebK = s.MinPerSource
		case domain.SourceVector:
			freed += plan.VectorK - s.MinPerSource
			plan.VectorK = s.MinPerSource
		case domain.SourceGraph:
			freed += plan.GraphK - s.MinPerSource
			plan.GraphK = s.MinPerSource
		}
	}
	if freed <= 0 {
		return plan
	}

	for _, source := range []domain.Source{domain.SourceVector, domain.SourceGraph, domain.SourceWeb} {
		if freed <= 0 {
			break
		}
		if coolingSources[source] {
			continue
		}
		room := s.MaxTotalK - plan.Total()
		if room <= 0 {
			break
		}
		grant := freed
		if grant > room {
			grant = room
		}
		switch source {
		case domain.SourceVector:
			plan.VectorK += grant
		case domain.SourceGraph:
			plan.GraphK += grant
		case domain.SourceWeb:
			plan.WebK += grant
		}
		freed -= grant
	}
	return finishPlan(s, plan)
}
