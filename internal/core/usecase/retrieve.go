package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

type PipelineConfig struct {
	RRFK          int
	SourceWeights map[domain.Source]float64
	SourceTimeout time.Duration
	RerankBudget  time.Duration
	DefaultTopK   int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RRFK: defaultRRFK,
		SourceWeights: map[domain.Source]float64{
			domain.SourceLexical: 1.0,
			domain.SourceWeb:     1.0,
			domain.SourceVector:  1.0,
			domain.SourceGraph:   0.8,
		},
		SourceTimeout: 5 * time.Second,
		RerankBudget:  defaultRerankBudget,
		DefaultTopK:   10,
	}
}

// ContextDeriver classifies a raw query, filling in whatever the caller
// left blank in the request context.
type ContextDeriver func(query string, base domain.QueryContext) domain.QueryContext

// RetrieveUseCase drives one query through allocation, parallel source
// fan-out, fusion, diversification and reranking. Every enhancement stage
// degrades to the previous stage's output instead of failing the query.
type RetrieveUseCase struct {
	allocator ports.BudgetAllocator
	sources   []ports.CandidateSource
	backend   ports.RerankBackend
	metrics   ports.MetricsRecorder
	cfg       PipelineConfig
	derive    ContextDeriver
}

// WithContextDeriver installs the query classifier. Without one the request
// context is used as-is.
func (uc *RetrieveUseCase) WithContextDeriver(derive ContextDeriver) *RetrieveUseCase {
	uc.derive = derive
	return uc
}

func NewRetrieveUseCase(
	allocator ports.BudgetAllocator,
	sources []ports.CandidateSource,
	backend ports.RerankBackend,
	metrics ports.MetricsRecorder,
	cfg PipelineConfig,
) *RetrieveUseCase {
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultPipelineConfig().SourceTimeout
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultPipelineConfig().DefaultTopK
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &RetrieveUseCase{
		allocator: allocator,
		sources:   sources,
		backend:   backend,
		metrics:   metrics,
		cfg:       cfg,
	}
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return &domain.RetrievalResult{Candidates: []domain.Candidate{}}, nil
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}

	qctx := opts.Context
	if uc.derive != nil {
		qctx = uc.derive(query, qctx)
	}
	// The allocator records the selection; observing it here as well would
	// double-count every query.
	decision := uc.allocator.Allocate(qctx)

	lists := uc.fetchAll(ctx, query, decision.Plan, opts.SourceFilter)

	start := time.Now()
	fused := fuseRRF(lists, uc.cfg.RRFK)
	fused = trimCandidates(fused, decision.Plan.PoolSize)
	uc.metrics.ObserveStage("fusion", time.Since(start))

	start = time.Now()
	diversified := diversifyMMR(fused, topK)
	uc.metrics.ObserveStage("diversify", time.Since(start))

	start = time.Now()
	reranked := applyRerank(ctx, uc.backend, query, diversified, uc.cfg.RerankBudget)
	uc.metrics.ObserveStage("rerank", time.Since(start))

	return &domain.RetrievalResult{
		Candidates: trimCandidates(reranked, topK),
		Decision:   decision,
	}, nil
}

// fetchAll issues every source fetch in parallel and gathers whatever came
// back before the per-source timeout. A failing or slow source contributes
// an empty list, never an error.
func (uc *RetrieveUseCase) fetchAll(ctx context.Context, query string, plan domain.KPlan, sourceFilter string) []SourceList {
	lists := make([]SourceList, len(uc.sources))

	var group errgroup.Group
	for i, source := range uc.sources {
		k := budgetFor(source.Name(), plan)
		lists[i] = SourceList{Source: source.Name(), Weight: uc.weightFor(source.Name())}
		if k <= 0 {
			continue
		}
		if sourceFilter != "" && string(source.Name()) != sourceFilter {
			continue
		}

		group.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, uc.cfg.SourceTimeout)
			defer cancel()

			candidates, err := source.Fetch(fetchCtx, query, k)
			if err != nil {
				slog.Warn("source_fetch_degraded", "source", source.Name(), "error", err)
				uc.metrics.ObserveSource(source.Name(), 0, true)
				return nil
			}
			lists[i].Candidates = candidates
			uc.metrics.ObserveSource(source.Name(), len(candidates), false)
			return nil
		})
	}
	_ = group.Wait()
	return lists
}

func (uc *RetrieveUseCase) weightFor(source domain.Source) float64 {
	if weight, ok := uc.cfg.SourceWeights[source]; ok {
		return weight
	}
	return 1
}

func budgetFor(source domain.Source, plan domain.KPlan) int {
	switch source {
	case domain.SourceWeb:
		return plan.WebK
	case domain.SourceVector:
		return plan.VectorK
	case domain.SourceGraph:
		return plan.GraphK
	case domain.SourceLexical:
		return plan.PoolSize
	}
	return 0
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
