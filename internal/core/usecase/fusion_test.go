package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

func TestFuseRRFDeduplicatesAcrossSources(t *testing.T) {
	local := SourceList{
		Source: domain.SourceLexical,
		Weight: 1.0,
		Candidates: []domain.Candidate{
			{ID: "x", Title: "local title", Rank: 1},
		},
	}
	web := SourceList{
		Source: domain.SourceWeb,
		Weight: 0.5,
		Candidates: []domain.Candidate{
			{ID: "x", Title: "web title", Rank: 1},
		},
	}

	fused := fuseRRF([]SourceList{local, web}, 60)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused candidate, got %d", len(fused))
	}

	want := 1.0/61.0 + 0.5/61.0
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("expected fused score %f, got %f", want, fused[0].Score)
	}
	if fused[0].Title != "local title" {
		t.Fatalf("expected first-source payload retained, got %q", fused[0].Title)
	}

	alone := fuseRRF([]SourceList{local}, 60)
	if fused[0].Score <= alone[0].Score {
		t.Fatalf("expected fused score %f > single-source score %f", fused[0].Score, alone[0].Score)
	}
}

func TestFuseRRFDeduplicatesByCanonicalURL(t *testing.T) {
	local := SourceList{
		Source: domain.SourceLexical,
		Candidates: []domain.Candidate{
			{ID: "chunk-1", Rank: 1, Metadata: map[string]string{"url": "https://example.com/page?utm_source=x"}},
		},
	}
	web := SourceList{
		Source: domain.SourceWeb,
		Candidates: []domain.Candidate{
			{ID: "web-99", Rank: 1, Metadata: map[string]string{"url": "https://example.com/page"}},
		},
	}

	fused := fuseRRF([]SourceList{local, web}, 60)
	if len(fused) != 1 {
		t.Fatalf("expected url dedup to yield 1 candidate, got %d", len(fused))
	}
	if fused[0].ID != "chunk-1" {
		t.Fatalf("expected first occurrence to win, got %s", fused[0].ID)
	}
}

func TestFuseRRFTieBreaksBySourceOrder(t *testing.T) {
	first := SourceList{Source: domain.SourceWeb, Candidates: []domain.Candidate{{ID: "a", Rank: 1}}}
	second := SourceList{Source: domain.SourceVector, Candidates: []domain.Candidate{{ID: "b", Rank: 1}}}

	fused := fuseRRF([]SourceList{first, second}, 60)
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	if fused[0].ID != "a" || fused[1].ID != "b" {
		t.Fatalf("expected stable source-order tie-break, got %s then %s", fused[0].ID, fused[1].ID)
	}
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	if fused := fuseRRF(nil, 60); len(fused) != 0 {
		t.Fatalf("expected empty output for nil input, got %d", len(fused))
	}
	fused := fuseRRF([]SourceList{{Source: domain.SourceWeb}, {Source: domain.SourceVector}}, 60)
	if len(fused) != 0 {
		t.Fatalf("expected empty output for empty lists, got %d", len(fused))
	}
}

func TestFuseRRFAssignsSequentialRanks(t *testing.T) {
	list := SourceList{
		Source: domain.SourceLexical,
		Candidates: []domain.Candidate{
			{ID: "a", Rank: 1},
			{ID: "b", Rank: 2},
			{ID: "c", Rank: 3},
		},
	}
	fused := fuseRRF([]SourceList{list}, 60)
	for i, candidate := range fused {
		if candidate.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, candidate.Rank)
		}
	}
}
