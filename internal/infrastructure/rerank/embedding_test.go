package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type stubSearcher struct {
	neighbors []ports.Neighbor
	err       error
}

func (s *stubSearcher) Search([]float32, int) ([]ports.Neighbor, error) {
	return s.neighbors, s.err
}

func TestEmbeddingPromotesNeighbors(t *testing.T) {
	searcher := &stubSearcher{neighbors: []ports.Neighbor{
		{ID: "near", Distance: 0.05},
		{ID: "far", Distance: 0.9},
	}}
	backend, err := NewEmbedding(&stubEmbedder{}, searcher, nil)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}

	candidates := []domain.Candidate{
		{ID: "absent", Score: 0.4, Rank: 1},
		{ID: "near", Score: 0.3, Rank: 2},
	}
	out, err := backend.Rerank(context.Background(), "query", candidates)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if out[0].ID != "near" {
		t.Fatalf("neighbor should outrank absent candidate, got %s first", out[0].ID)
	}
}

func TestEmbeddingFailSoftOnEmbedError(t *testing.T) {
	backend, err := NewEmbedding(&stubEmbedder{err: errors.New("model down")}, &stubSearcher{}, nil)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}

	candidates := []domain.Candidate{{ID: "a", Score: 0.5, Rank: 1}}
	out, rerankErr := backend.Rerank(context.Background(), "query", candidates)
	if rerankErr == nil {
		t.Fatalf("expected degraded error")
	}
	if !domain.IsKind(rerankErr, domain.ErrBackendDegraded) {
		t.Fatalf("expected backend degraded kind, got %v", rerankErr)
	}
	if len(out) != 1 || out[0].ID != "a" || out[0].Score != 0.5 {
		t.Fatalf("input must be returned untouched, got %+v", out)
	}
}

func TestEmbeddingCachesQueryVector(t *testing.T) {
	embedder := &stubEmbedder{}
	backend, err := NewEmbedding(embedder, &stubSearcher{}, nil)
	if err != nil {
		t.Fatalf("new embedding: %v", err)
	}

	candidates := []domain.Candidate{{ID: "a", Score: 0.5, Rank: 1}}
	for i := 0; i < 3; i++ {
		if _, err := backend.Rerank(context.Background(), "same query", candidates); err != nil {
			t.Fatalf("rerank: %v", err)
		}
	}
	if embedder.calls != 1 {
		t.Fatalf("expected a single embed call for a repeated query, got %d", embedder.calls)
	}
}
