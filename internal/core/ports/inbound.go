package ports

import (
	"context"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// RetrievalService is the inbound contract for the full query pipeline:
// allocation, fan-out, fusion, diversification and reranking.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}

// BudgetAllocator decides per-source candidate budgets and accepts rewards.
type BudgetAllocator interface {
	Allocate(qctx domain.QueryContext) domain.Decision
	Feedback(tile int, arm domain.Arm, reward float64)
}

// FeedbackService shapes raw outcome signals into a bandit reward.
type FeedbackService interface {
	Submit(ctx context.Context, event domain.RewardEvent) error
}
