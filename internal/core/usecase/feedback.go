package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// FeedbackUseCase shapes raw outcome signals into a clamped reward and
// hands it to the allocator.
type FeedbackUseCase struct {
	allocator ports.BudgetAllocator
	weights   RewardWeights
	metrics   ports.MetricsRecorder
}

func NewFeedbackUseCase(
	allocator ports.BudgetAllocator,
	weights RewardWeights,
	metrics ports.MetricsRecorder,
) *FeedbackUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &FeedbackUseCase{
		allocator: allocator,
		weights:   weights,
		metrics:   metrics,
	}
}

func (uc *FeedbackUseCase) Submit(_ context.Context, event domain.RewardEvent) error {
	reward := ShapeReward(event.Outcome, uc.weights)
	uc.allocator.Feedback(event.Tile, event.Arm, reward)
	uc.metrics.ObserveReward(reward)

	slog.Debug("reward_applied",
		"decision_id", event.DecisionID,
		"tile", event.Tile,
		"arm", event.Arm,
		"reward", reward,
	)
	return nil
}
