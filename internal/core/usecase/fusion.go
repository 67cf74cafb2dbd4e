package usecase

import (
	"sort"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

const defaultRRFK = 60

// SourceList is one ranked candidate list entering fusion, with the weight
// its source carries in the reciprocal-rank sum.
type SourceList struct {
	Source     domain.Source
	Weight     float64
	Candidates []domain.Candidate
}

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
	firstSeen int
}

// fuseRRF combines ranked lists with weighted Reciprocal Rank Fusion. Lists
// are deduplicated by canonical URL (falling back to id); the first source to
// contribute a key keeps its payload, later sources only add score. Ties
// break by source iteration order.
func fuseRRF(lists []SourceList, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]fusedCandidate)
	order := 0
	for _, list := range lists {
		weight := list.Weight
		if weight <= 0 {
			weight = 1
		}
		for i, candidate := range list.Candidates {
			rank := candidate.Rank
			if rank <= 0 {
				rank = i + 1
			}

			key := candidate.DedupKey()
			entry, seen := acc[key]
			if !seen {
				entry.candidate = candidate
				entry.firstSeen = order
				order++
			}
			entry.score += weight / float64(rrfK+rank)
			acc[key] = entry
		}
	}

	out := make([]fusedCandidate, 0, len(acc))
	for _, entry := range acc {
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].firstSeen < out[j].firstSeen
	})

	fused := make([]domain.Candidate, 0, len(out))
	for i, entry := range out {
		candidate := entry.candidate
		candidate.Score = entry.score
		candidate.Rank = i + 1
		fused = append(fused, candidate)
	}
	return fused
}
