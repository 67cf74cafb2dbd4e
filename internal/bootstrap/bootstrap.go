package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/kirillkom/adaptive-retrieval/internal/adapters/http"
	"github.com/kirillkom/adaptive-retrieval/internal/bandit"
	"github.com/kirillkom/adaptive-retrieval/internal/config"
	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
	"github.com/kirillkom/adaptive-retrieval/internal/core/usecase"
	"github.com/kirillkom/adaptive-retrieval/internal/index/ann"
	"github.com/kirillkom/adaptive-retrieval/internal/index/lexical"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/content"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/embed"
	natsqueue "github.com/kirillkom/adaptive-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/rerank"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/source"
	"github.com/kirillkom/adaptive-retrieval/internal/infrastructure/statestore"
	"github.com/kirillkom/adaptive-retrieval/internal/observability/logging"
	"github.com/kirillkom/adaptive-retrieval/internal/observability/metrics"
)

// App wires configuration into the running object graph. Close releases
// resources in reverse construction order and flushes bandit state.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.RetrievalMetrics
	Store    *bandit.Store
	Feedback *usecase.FeedbackUseCase
	Queue    *natsqueue.Queue
	Handler  http.Handler

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	settings := config.LoadSettings(cfg.SettingsPath, logger)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: invalid settings: %w", err)
	}

	retrievalMetrics := metrics.NewRetrievalMetrics(service)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: retrievalMetrics,
	}

	persistence, err := app.buildPersistence(cfg, logger)
	if err != nil {
		return nil, err
	}

	flushInterval := time.Duration(banditFlushSeconds(settings)) * time.Second
	store := bandit.NewStore(persistence, flushInterval, retrievalMetrics, logger)
	store.Load(ctx)
	app.Store = store

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	cooling := resilience.NewSourceCooling(executor)

	allocator := bandit.NewAllocator(banditSettings(settings), store, cooling, retrievalMetrics, logger)

	sources, err := app.buildSources(cfg, executor, logger)
	if err != nil {
		return nil, err
	}

	backend, err := app.buildRerankBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	retrieve := usecase.NewRetrieveUseCase(
		allocator,
		sources,
		backend,
		retrievalMetrics,
		pipelineConfig(cfg, settings),
	).WithContextDeriver(func(query string, base domain.QueryContext) domain.QueryContext {
		derived := bandit.DeriveContext(query, settings.Bandit.RecencyKeywords, base.OfficialOnly)
		if base.Intent != "" {
			derived.Intent = base.Intent
		}
		return derived
	})

	feedback := usecase.NewFeedbackUseCase(allocator, rewardWeights(settings), retrievalMetrics)
	app.Feedback = feedback

	var queue ports.FeedbackQueue
	if cfg.NATSURL != "" {
		q, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			logger.Warn("feedback queue unavailable, applying rewards inline", "error", err)
		} else {
			app.Queue = q
			app.closeFns = append(app.closeFns, q.Close)
			queue = q
		}
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service, retrievalMetrics)
	router := httpadapter.NewRouter(retrieve, feedback, queue, retrievalMetrics.Handler())
	app.Handler = httpMetrics.Middleware(router.Handler())

	return app, nil
}

// Close flushes bandit state and tears down connections. Safe to call once.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.Store != nil {
		a.Store.Flush(ctx)
	}
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

func (a *App) buildPersistence(cfg config.Config, logger *slog.Logger) (ports.StatsPersistence, error) {
	switch cfg.StateBackend {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("bootstrap: STATE_BACKEND=postgres requires POSTGRES_DSN")
		}
		db, err := statestore.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open postgres: %w", err)
		}
		a.trackClose(func() { _ = db.Close() })
		pg := statestore.NewPostgresStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("bootstrap: ensure schema: %w", err)
		}
		return pg, nil
	case "file", "":
		return statestore.NewFileStore(cfg.StatePath, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", cfg.StateBackend)
	}
}

func (a *App) buildSources(
	cfg config.Config,
	executor *resilience.Executor,
	logger *slog.Logger,
) ([]ports.CandidateSource, error) {
	corpus, err := content.NewLocalCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: corpus: %w", err)
	}
	index := lexical.NewIndex(corpus, cfg.ChunkWindow)

	timeout := time.Duration(cfg.SourceTimeoutMS) * time.Millisecond
	sources := []ports.CandidateSource{
		source.NewLexicalSource(index, cfg.LexicalFilter),
	}

	if cfg.WebSearchURL != "" {
		web := source.NewWebSource(cfg.WebSearchURL, cfg.WebSearchAPIKey, timeout)
		sources = append(sources, resilience.NewGuardedSource(web, executor))
	}
	if cfg.QdrantURL != "" {
		embedder := embed.NewOllamaEmbedder(cfg.EmbedURL, cfg.EmbedModel, timeout)
		vector := source.NewVectorSource(cfg.QdrantURL, cfg.QdrantCollection, embedder, timeout)
		sources = append(sources, resilience.NewGuardedSource(vector, executor))
	}
	if cfg.Neo4jURL != "" {
		driver, err := source.OpenGraphDriver(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			logger.Warn("graph source unavailable", "error", err)
		} else {
			a.trackClose(func() { _ = driver.Close(context.Background()) })
			graph := source.NewGraphSource(driver, cfg.Neo4jDatabase, cfg.Neo4jIndex)
			sources = append(sources, resilience.NewGuardedSource(graph, executor))
		}
	}
	return sources, nil
}

func (a *App) buildRerankBackend(cfg config.Config, logger *slog.Logger) (ports.RerankBackend, error) {
	heuristic := rerank.NewHeuristic()
	timeout := time.Duration(cfg.RerankBudgetMS) * time.Millisecond

	switch cfg.RerankBackend {
	case "heuristic", "":
		return heuristic, nil
	case "cross_encoder":
		if cfg.RerankURL == "" {
			return nil, fmt.Errorf("bootstrap: RERANK_BACKEND=cross_encoder requires RERANK_URL")
		}
		return rerank.NewCrossEncoder(cfg.RerankURL, cfg.RerankModel, timeout, heuristic, logger), nil
	case "embedding":
		embedder := embed.NewOllamaEmbedder(cfg.EmbedURL, cfg.EmbedModel, timeout)
		searcher := ann.NewFlatIndex(cfg.ANNVectorsPath, cfg.ANNIDMapPath, logger)
		return rerank.NewEmbedding(embedder, searcher, logger)
	case "late_interaction":
		embedder := embed.NewOllamaEmbedder(cfg.EmbedURL, cfg.EmbedModel, timeout)
		return rerank.NewLateInteraction(embedder, false), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown rerank backend %q", cfg.RerankBackend)
	}
}

func (a *App) trackClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func banditSettings(settings config.Settings) bandit.Settings {
	out := bandit.DefaultSettings()
	b := settings.Bandit
	if b.MinPerSource > 0 {
		out.MinPerSource = b.MinPerSource
	}
	if b.StepSize > 0 {
		out.StepSize = b.StepSize
	}
	if b.MaxTotalK > 0 {
		out.MaxTotalK = b.MaxTotalK
	}
	if b.PoolFloor > 0 {
		out.PoolFloor = b.PoolFloor
	}
	if b.Epsilon != nil {
		out.Epsilon = *b.Epsilon
	}
	if b.ExplorationC > 0 {
		out.ExplorationC = b.ExplorationC
	}
	if len(b.RecencyKeywords) > 0 {
		out.RecencyKeywords = b.RecencyKeywords
	}
	if b.FlushMinSeconds > 0 {
		out.FlushMinSeconds = b.FlushMinSeconds
	}
	if settings.Reward.Min != nil {
		out.RewardMin = *settings.Reward.Min
	}
	if settings.Reward.Max != nil {
		out.RewardMax = *settings.Reward.Max
	}
	return out
}

func banditFlushSeconds(settings config.Settings) int {
	if settings.Bandit.FlushMinSeconds > 0 {
		return settings.Bandit.FlushMinSeconds
	}
	return bandit.DefaultSettings().FlushMinSeconds
}

func pipelineConfig(cfg config.Config, settings config.Settings) usecase.PipelineConfig {
	out := usecase.DefaultPipelineConfig()
	if settings.Fusion.RRFK > 0 {
		out.RRFK = settings.Fusion.RRFK
	}
	if len(settings.Fusion.SourceWeights) > 0 {
		weights := make(map[domain.Source]float64, len(settings.Fusion.SourceWeights))
		for name, weight := range settings.Fusion.SourceWeights {
			weights[domain.Source(name)] = weight
		}
		out.SourceWeights = weights
	}
	if cfg.SourceTimeoutMS > 0 {
		out.SourceTimeout = time.Duration(cfg.SourceTimeoutMS) * time.Millisecond
	}
	if cfg.RerankBudgetMS > 0 {
		out.RerankBudget = time.Duration(cfg.RerankBudgetMS) * time.Millisecond
	}
	if cfg.DefaultTopK > 0 {
		out.DefaultTopK = cfg.DefaultTopK
	}
	return out
}

func rewardWeights(settings config.Settings) usecase.RewardWeights {
	out := usecase.DefaultRewardWeights()
	r := settings.Reward
	if r.DocGainScale > 0 {
		out.DocGainScale = r.DocGainScale
	}
	if r.LatencyPenalty > 0 {
		out.LatencyPenalty = r.LatencyPenalty
	}
	if r.FailurePenalty > 0 {
		out.FailurePenalty = r.FailurePenalty
	}
	if r.AuthorityBonus > 0 {
		out.AuthorityBonus = r.AuthorityBonus
	}
	if r.CoverageBonus > 0 {
		out.CoverageBonus = r.CoverageBonus
	}
	if r.DuplicatePenalty > 0 {
		out.DuplicatePenalty = r.DuplicatePenalty
	}
	if r.NeedleBonus > 0 {
		out.NeedleBonus = r.NeedleBonus
	}
	if r.Min != nil {
		out.Min = *r.Min
	}
	if r.Max != nil {
		out.Max = *r.Max
	}
	return out
}
