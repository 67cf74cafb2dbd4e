package usecase

import (
	"fmt"
	"testing"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

func TestDiversifyMMRReducesRedundancy(t *testing.T) {
	near := "the quick brown fox jumps over the lazy dog near the river bank today"
	candidates := make([]domain.Candidate, 0, 20)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:      fmt.Sprintf("dup-%d", i),
			Snippet: fmt.Sprintf("%s variant %d", near, i),
			Score:   1.0,
			Rank:    i + 1,
		})
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:      fmt.Sprintf("distinct-%d", i),
			Snippet: fmt.Sprintf("entirely different topic number %d covering planets stars galaxies orbit telescope %d data", i, i*7),
			Score:   1.0,
			Rank:    i + 11,
		})
	}

	diversified := diversifyMMR(candidates, 10)
	if len(diversified) == 0 {
		t.Fatalf("expected non-empty selection")
	}

	naive := candidates[:10]
	if meanPairwiseJaccard(diversified[:10]) >= meanPairwiseJaccard(naive) {
		t.Fatalf("expected diversified selection to have lower mean similarity: %f vs %f",
			meanPairwiseJaccard(diversified[:10]), meanPairwiseJaccard(naive))
	}
}

func meanPairwiseJaccard(candidates []domain.Candidate) float64 {
	shingles := make([]map[string]struct{}, len(candidates))
	for i, candidate := range candidates {
		shingles[i] = snippetShingles(candidate.Snippet)
	}
	total, pairs := 0.0, 0
	for i := range shingles {
		for j := i + 1; j < len(shingles); j++ {
			total += jaccard(shingles[i], shingles[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func TestDiversifyMMRTieBreaksTowardGreedyOrder(t *testing.T) {
	near := "shared boilerplate sentence repeated across near duplicate documents again and again"
	candidates := make([]domain.Candidate, 0, 6)
	for i := 0; i < 3; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:      fmt.Sprintf("dup-%d", i),
			Snippet: fmt.Sprintf("%s copy %d", near, i),
			Score:   1.0,
			Rank:    i + 1,
		})
	}
	for i := 0; i < 3; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:      fmt.Sprintf("fresh-%d", i),
			Snippet: fmt.Sprintf("unique subject %d about volcanoes glaciers fjords meadows tundra %d terrain", i, i*3),
			Score:   1.0,
			Rank:    i + 4,
		})
	}

	// Everything fits the selection target, so only the tie-break decides
	// the displayed prefix. Equal scores must follow greedy order, not
	// pool position.
	out := diversifyMMR(candidates, 2)
	if len(out) < 2 {
		t.Fatalf("expected at least 2 selected, got %d", len(out))
	}
	if out[0].ID != "dup-0" {
		t.Fatalf("expected first greedy pick in position 1, got %s", out[0].ID)
	}
	if out[1].ID == "dup-1" || out[1].ID == "dup-2" {
		t.Fatalf("expected a dissimilar candidate in position 2, got %s", out[1].ID)
	}
}

func TestDiversifyMMRPreservesRelevanceOrder(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: "a", Snippet: "alpha beta gamma delta epsilon zeta one", Score: 0.9, Rank: 1},
		{ID: "b", Snippet: "totally unrelated snippet about oceans tides currents waves", Score: 0.5, Rank: 2},
		{ID: "c", Snippet: "another snippet on mountains valleys peaks ridges summits", Score: 0.7, Rank: 3},
	}

	out := diversifyMMR(candidates, 3)
	for i := 1; i < len(out); i++ {
		if out[i-1].Score < out[i].Score {
			t.Fatalf("expected final order by original relevance, got %f before %f", out[i-1].Score, out[i].Score)
		}
	}
	for i, candidate := range out {
		if candidate.Rank != i+1 {
			t.Fatalf("expected rank %d reassigned, got %d", i+1, candidate.Rank)
		}
	}
}

func TestDiversifyMMRDeterministic(t *testing.T) {
	candidates := make([]domain.Candidate, 0, 40)
	for i := 0; i < 40; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:      fmt.Sprintf("c-%d", i),
			Snippet: fmt.Sprintf("snippet %d mentions topic %d and subject %d in passing detail", i, i%5, i%7),
			Score:   float64(40-i) / 40,
			Rank:    i + 1,
		})
	}

	first := diversifyMMR(candidates, 5)
	second := diversifyMMR(candidates, 5)
	if len(first) != len(second) {
		t.Fatalf("expected identical lengths, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("expected deterministic selection, diverged at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestDiversifyMMREmptyAndSmallInputs(t *testing.T) {
	if out := diversifyMMR(nil, 10); len(out) != 0 {
		t.Fatalf("expected empty output for nil input")
	}
	one := []domain.Candidate{{ID: "solo", Snippet: "single entry", Score: 1, Rank: 1}}
	out := diversifyMMR(one, 10)
	if len(out) != 1 || out[0].ID != "solo" {
		t.Fatalf("expected single candidate passthrough, got %v", out)
	}
}
