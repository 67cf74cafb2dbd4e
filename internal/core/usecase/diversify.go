package usecase

import (
	"sort"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/index/lexical"
)

const (
	mmrLambda   = 0.75
	minPoolSize = 32
	shingleSize = 5
)

// diversifyMMR greedily selects a low-redundancy subset of the fused pool.
// Diversification affects membership only: the chosen set is re-sorted by
// the original fused score before ranks are reassigned. Deterministic.
func diversifyMMR(fused []domain.Candidate, topK int) []domain.Candidate {
	if len(fused) == 0 || topK <= 0 {
		return fused
	}

	poolSize := topK * 5
	if poolSize < minPoolSize {
		poolSize = minPoolSize
	}
	if poolSize > len(fused) {
		poolSize = len(fused)
	}
	pool := fused[:poolSize]

	target := topK * 3
	if target > len(pool) {
		target = len(pool)
	}

	maxScore := pool[0].Score
	for _, candidate := range pool {
		if candidate.Score > maxScore {
			maxScore = candidate.Score
		}
	}
	if maxScore <= 0 {
		maxScore = 1
	}

	shingles := make([]map[string]struct{}, len(pool))
	for i, candidate := range pool {
		shingles[i] = snippetShingles(candidate.Snippet)
	}

	selected := make([]int, 0, target)
	chosen := make([]bool, len(pool))
	for len(selected) < target {
		bestIdx := -1
		bestMMR := 0.0
		for i := range pool {
			if chosen[i] {
				continue
			}

			relevance := pool[i].Score / maxScore
			maxSim := 0.0
			for _, sel := range selected {
				if sim := jaccard(shingles[i], shingles[sel]); sim > maxSim {
					maxSim = sim
				}
			}

			mmr := mmrLambda*relevance - (1-mmrLambda)*maxSim
			if bestIdx == -1 || mmr > bestMMR {
				bestIdx = i
				bestMMR = mmr
			}
		}
		if bestIdx == -1 {
			break
		}
		chosen[bestIdx] = true
		selected = append(selected, bestIdx)
	}

	// Keep selection order so equal scores tie-break toward the greedy
	// pick, not pool position. Otherwise a pool of equally-scored
	// near-duplicates would reassemble in the displayed prefix.
	out := make([]domain.Candidate, 0, len(selected))
	for _, idx := range selected {
		out = append(out, pool[idx])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// snippetShingles builds the 5-gram token shingle set of a snippet.
func snippetShingles(snippet string) map[string]struct{} {
	tokens := lexical.Tokenize(snippet)
	out := make(map[string]struct{})
	if len(tokens) < shingleSize {
		if len(tokens) > 0 {
			out[joinTokens(tokens)] = struct{}{}
		}
		return out
	}
	for i := 0; i+shingleSize <= len(tokens); i++ {
		out[joinTokens(tokens[i:i+shingleSize])] = struct{}{}
	}
	return out
}

func joinTokens(tokens []string) string {
	joined := tokens[0]
	for _, token := range tokens[1:] {
		joined += " " + token
	}
	return joined
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for shingle := range a {
		if _, ok := b[shingle]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
