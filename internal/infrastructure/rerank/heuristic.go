package rerank

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/index/lexical"
)

// Heuristic scores a pair from exact-phrase containment and token overlap,
// squashed through a logistic. No external dependencies, so it is always
// available and serves as the fallback for every learned backend.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string {
	return "heuristic"
}

func (h *Heuristic) Score(_ context.Context, query, title, content string) (float64, error) {
	phrase := 0.0
	trimmed := strings.ToLower(strings.TrimSpace(query))
	if trimmed != "" && strings.Contains(strings.ToLower(content), trimmed) {
		phrase = 1
	}

	queryTokens := lexical.TokenSet(query)
	titleOverlap := lexical.OverlapRatio(queryTokens, lexical.TokenSet(title))
	bodyOverlap := lexical.OverlapRatio(queryTokens, lexical.TokenSet(content))

	raw := 2.2*phrase + 1.6*titleOverlap + 1.2*bodyOverlap - 1.0
	return logistic(raw), nil
}

// Rerank re-scores the whole list pairwise and sorts by the new score.
func (h *Heuristic) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	return rerankByScorer(ctx, h, query, candidates)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// rerankByScorer applies a pair scorer to every candidate. On the first
// scoring failure the input is returned unchanged.
func rerankByScorer(ctx context.Context, scorer interface {
	Score(ctx context.Context, query, title, content string) (float64, error)
}, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		score, err := scorer.Score(ctx, query, out[i].Title, out[i].Snippet)
		if err != nil {
			return candidates, err
		}
		out[i].Score = score
	}

	sortCandidates(out)
	return out, nil
}

func sortCandidates(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
}
