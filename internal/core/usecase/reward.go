package usecase

import (
	"math"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// RewardWeights are policy tuning constants for reward shaping. They are
// configuration, not contract: replacing them never affects the bandit's
// correctness.
type RewardWeights struct {
	DocGainScale     float64
	LatencyPenalty   float64
	FailurePenalty   float64
	AuthorityBonus   float64
	CoverageBonus    float64
	DuplicatePenalty float64
	NeedleBonus      float64
	Min              float64
	Max              float64
}

func DefaultRewardWeights() RewardWeights {
	return RewardWeights{
		DocGainScale:     10,
		LatencyPenalty:   0.3,
		FailurePenalty:   1.0,
		AuthorityBonus:   0.1,
		CoverageBonus:    0.1,
		DuplicatePenalty: 0.1,
		NeedleBonus:      0.05,
		Min:              -1,
		Max:              1,
	}
}

// RewardTransform adjusts a running reward given the observed outcome.
// Transforms compose in a fixed order so their effects stay inspectable.
type RewardTransform func(outcome domain.RewardOutcome, reward float64) float64

// ShapeReward applies the transform pipeline and clamps into [Min, Max].
func ShapeReward(outcome domain.RewardOutcome, weights RewardWeights) float64 {
	reward := 0.0
	for _, transform := range rewardPipeline(weights) {
		reward = transform(outcome, reward)
	}
	return clamp(reward, weights.Min, weights.Max)
}

func rewardPipeline(w RewardWeights) []RewardTransform {
	return []RewardTransform{
		docGainTransform(w),
		latencyTransform(w),
		failureTransform(w),
		authorityTransform(w),
		coverageTransform(w),
		duplicateTransform(w),
		needleTransform(w),
	}
}

// docGainTransform rewards retrieving more documents than the baseline,
// squashed through tanh so large gains saturate.
func docGainTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		gain := float64(outcome.DocsRetrieved - outcome.BaselineDocs)
		scale := w.DocGainScale
		if scale <= 0 {
			scale = 1
		}
		return reward + math.Tanh(gain/scale)
	}
}

// latencyTransform penalizes spending more than the latency budget.
func latencyTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		if outcome.LatencyBudgetRatio <= 1 {
			return reward
		}
		return reward - w.LatencyPenalty*(outcome.LatencyBudgetRatio-1)
	}
}

func failureTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		if !outcome.Failed {
			return reward
		}
		return reward - w.FailurePenalty
	}
}

func authorityTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		return reward + w.AuthorityBonus*clamp(outcome.AuthorityShare, 0, 1)
	}
}

func coverageTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		return reward + w.CoverageBonus*clamp(outcome.Coverage, 0, 1)
	}
}

func duplicateTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		return reward - w.DuplicatePenalty*clamp(outcome.DuplicateRatio, 0, 1)
	}
}

func needleTransform(w RewardWeights) RewardTransform {
	return func(outcome domain.RewardOutcome, reward float64) float64 {
		return reward + w.NeedleBonus*clamp(outcome.NeedleContribution, -1, 1)
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
