package ports

import (
	"context"
	"time"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// CandidateSource fetches ranked candidates from one retrieval backend.
type CandidateSource interface {
	Name() domain.Source
	Fetch(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

// CorpusFile describes one indexable source file.
type CorpusFile struct {
	Path    string
	ModTime time.Time
}

// CorpusProvider yields source files for lexical index builds.
type CorpusProvider interface {
	List(ctx context.Context) ([]CorpusFile, error)
	Read(ctx context.Context, path string) (string, error)
}

// Embedder builds a vector for query or candidate text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TokenEmbedder embeds each token independently. Used by the
// late-interaction scorer.
type TokenEmbedder interface {
	EmbedTokens(ctx context.Context, tokens []string) ([][]float32, error)
}

// PairScorer scores a (query, document) pair in [0,1]. Implemented by the
// learned cross-encoder model client and the lexical heuristic.
type PairScorer interface {
	Score(ctx context.Context, query, title, content string) (float64, error)
}

// Neighbor is one ANN search hit. Distance is 1 - cosine similarity.
type Neighbor struct {
	ID       string
	Distance float64
}

// VectorSearcher serves nearest-neighbor lookups over precomputed vectors.
type VectorSearcher interface {
	Search(queryVector []float32, k int) ([]Neighbor, error)
}

// StatsSnapshot is the persisted shape of the bandit store.
type StatsSnapshot map[string]map[domain.Arm]domain.ArmStats

// StatsPersistence loads and saves bandit statistics. Both operations are
// best-effort: a missing or corrupt state must load as an empty snapshot.
type StatsPersistence interface {
	Load(ctx context.Context) (StatsSnapshot, error)
	Save(ctx context.Context, snapshot StatsSnapshot) error
}

// CoolingSignal reports whether a source is currently cooling down after
// repeated failures. Provided by the resilience layer.
type CoolingSignal interface {
	CoolingDown(source domain.Source) bool
}

// FeedbackQueue transports reward events from the query path to the worker.
type FeedbackQueue interface {
	PublishReward(ctx context.Context, event domain.RewardEvent) error
	SubscribeRewards(ctx context.Context, handler func(context.Context, domain.RewardEvent) error) error
}

// RerankBackend re-scores a bounded candidate set. Implementations must
// return the input unchanged instead of failing the pipeline.
type RerankBackend interface {
	Name() string
	Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error)
}

// MetricsRecorder is the injectable observability collaborator. Components
// receive it explicitly instead of reaching for ambient global state.
type MetricsRecorder interface {
	ObserveStage(stage string, duration time.Duration)
	ObserveSource(source domain.Source, count int, failed bool)
	ObserveSelection(tile int, arm domain.Arm)
	ObserveReward(reward float64)
	ObserveFlush(failed bool)
}

// NopMetrics discards every observation. Useful in tests.
type NopMetrics struct{}

func (NopMetrics) ObserveStage(string, time.Duration)       {}
func (NopMetrics) ObserveSource(domain.Source, int, bool)   {}
func (NopMetrics) ObserveSelection(int, domain.Arm)         {}
func (NopMetrics) ObserveReward(float64)                    {}
func (NopMetrics) ObserveFlush(bool)                        {}
