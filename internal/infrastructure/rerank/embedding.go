package rerank

import (
	"context"
	"log/slog"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

const embedCacheSize = 256

// Embedding reranks by nearest-neighbor proximity: the query is embedded,
// the ANN index returns its neighborhood, and candidates found in it get a
// rank-based score blended with their prior relevance. Query embeddings are
// cached because the same query often arrives more than once in a session.
type Embedding struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher
	cache    *lru.Cache[string, []float32]
	logger   *slog.Logger
}

func NewEmbedding(embedder ports.Embedder, searcher ports.VectorSearcher, logger *slog.Logger) (*Embedding, error) {
	cache, err := lru.New[string, []float32](embedCacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedding{embedder: embedder, searcher: searcher, cache: cache, logger: logger}, nil
}

func (e *Embedding) Name() string {
	return "embedding"
}

func (e *Embedding) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	vector, err := e.queryVector(ctx, query)
	if err != nil {
		return candidates, domain.WrapError(domain.ErrBackendDegraded, "rerank.embed", err)
	}

	neighbors, err := e.searcher.Search(vector, len(candidates)*2)
	if err != nil {
		return candidates, err
	}

	annScore := make(map[string]float64, len(neighbors))
	for i, neighbor := range neighbors {
		annScore[neighbor.ID] = 1.0 / float64(1+i)
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		prior := out[i].Score
		if prior < 0 {
			prior = 0
		}
		out[i].Score = 0.6*annScore[out[i].ID] + 0.4*math.Log1p(prior)
	}

	sortCandidates(out)
	return out, nil
}

func (e *Embedding) queryVector(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := e.cache.Get(query); ok {
		return cached, nil
	}
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	e.cache.Add(query, vector)
	return vector, nil
}
