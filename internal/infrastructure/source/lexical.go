package source

import (
	"context"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/index/lexical"
)

// LexicalSource exposes the local BM25 index as a candidate source.
type LexicalSource struct {
	index      *lexical.Index
	pathFilter string
}

func NewLexicalSource(index *lexical.Index, pathFilter string) *LexicalSource {
	return &LexicalSource{index: index, pathFilter: pathFilter}
}

func (s *LexicalSource) Name() domain.Source {
	return domain.SourceLexical
}

func (s *LexicalSource) Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	scored := s.index.Search(ctx, query, s.pathFilter, k)

	candidates := make([]domain.Candidate, 0, len(scored))
	for i, hit := range scored {
		candidates = append(candidates, domain.Candidate{
			ID:      hit.Chunk.ID,
			Title:   hit.Chunk.Title,
			Snippet: snippet(hit.Chunk.Body, 280),
			Source:  domain.SourceLexical,
			Score:   hit.Score,
			Rank:    i + 1,
			Metadata: map[string]string{
				"path": hit.Chunk.Path,
			},
		})
	}
	return candidates, nil
}

func snippet(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}
