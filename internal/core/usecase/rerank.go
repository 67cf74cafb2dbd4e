package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

const defaultRerankBudget = 2 * time.Second

// applyRerank runs the configured backend under a time budget. Any failure
// or expiry degrades to the diversified input order.
func applyRerank(
	ctx context.Context,
	backend ports.RerankBackend,
	query string,
	candidates []domain.Candidate,
	budget time.Duration,
) []domain.Candidate {
	if backend == nil || len(candidates) == 0 {
		return candidates
	}
	if budget <= 0 {
		budget = defaultRerankBudget
	}

	rerankCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	reranked, err := backend.Rerank(rerankCtx, query, candidates)
	if err != nil {
		slog.Warn("rerank_degraded", "backend", backend.Name(), "error", err)
		return candidates
	}
	if len(reranked) != len(candidates) {
		slog.Warn("rerank_dropped_candidates",
			"backend", backend.Name(),
			"in", len(candidates),
			"out", len(reranked),
		)
		return candidates
	}

	for i := range reranked {
		reranked[i].Rank = i + 1
	}
	return reranked
}
