package rerank

import (
	"context"
	"math"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
	"github.com/kirillkom/adaptive-retrieval/internal/index/lexical"
)

const (
	maxQueryTokens     = 16
	maxCandidateTokens = 64
)

// LateInteraction embeds query and candidate tokens independently and
// scores via max similarity per query token, averaged. The full variant
// blends 0.85/0.15 with the prior score; the simplified variant 0.7/0.3.
type LateInteraction struct {
	embedder   ports.TokenEmbedder
	lateWeight float64
	priorBlend float64
}

func NewLateInteraction(embedder ports.TokenEmbedder, simplified bool) *LateInteraction {
	li := &LateInteraction{embedder: embedder, lateWeight: 0.85, priorBlend: 0.15}
	if simplified {
		li.lateWeight = 0.7
		li.priorBlend = 0.3
	}
	return li
}

func (l *LateInteraction) Name() string {
	return "late_interaction"
}

func (l *LateInteraction) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	queryTokens := capTokens(lexical.Tokenize(query), maxQueryTokens)
	if len(queryTokens) == 0 {
		return candidates, nil
	}
	queryVectors, err := l.embedder.EmbedTokens(ctx, queryTokens)
	if err != nil {
		return candidates, domain.WrapError(domain.ErrBackendDegraded, "rerank.late", err)
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		tokens := capTokens(lexical.Tokenize(out[i].Title+" "+out[i].Snippet), maxCandidateTokens)
		if len(tokens) == 0 {
			continue
		}
		candidateVectors, err := l.embedder.EmbedTokens(ctx, tokens)
		if err != nil {
			return candidates, domain.WrapError(domain.ErrBackendDegraded, "rerank.late", err)
		}

		late := maxSimPerQueryToken(queryVectors, candidateVectors)
		prior := out[i].Score
		if prior < 0 {
			prior = 0
		}
		out[i].Score = l.lateWeight*late + l.priorBlend*math.Log1p(prior)
	}

	sortCandidates(out)
	return out, nil
}

// maxSimPerQueryToken is the late-interaction aggregate: for each query
// token take the best-matching candidate token, then average.
func maxSimPerQueryToken(queryVectors, candidateVectors [][]float32) float64 {
	if len(queryVectors) == 0 || len(candidateVectors) == 0 {
		return 0
	}
	var sum float64
	for _, qv := range queryVectors {
		best := math.Inf(-1)
		for _, cv := range candidateVectors {
			if sim := cosine(qv, cv); sim > best {
				best = sim
			}
		}
		if !math.IsInf(best, -1) {
			sum += best
		}
	}
	return sum / float64(len(queryVectors))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func capTokens(tokens []string, limit int) []string {
	if len(tokens) > limit {
		return tokens[:limit]
	}
	return tokens
}
