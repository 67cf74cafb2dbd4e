package bandit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// Allocator picks a K-Plan per query with a UCB1 bandit, one independent
// learner per context tile. Implements ports.BudgetAllocator.
type Allocator struct {
	settings Settings
	store    *Store
	cooling  ports.CoolingSignal
	metrics  ports.MetricsRecorder
	logger   *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewAllocator(settings Settings, store *Store, cooling ports.CoolingSignal, metrics ports.MetricsRecorder, logger *slog.Logger) *Allocator {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		settings: settings.withDefaults(),
		store:    store,
		cooling:  cooling,
		metrics:  metrics,
		logger:   logger,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
}

// Allocate maps the context to a tile, builds the candidate plans and
// selects an arm. Cold tiles cycle through every arm once before UCB1
// takes over.
func (a *Allocator) Allocate(qctx domain.QueryContext) domain.Decision {
	tile := TileFor(qctx)
	plans := candidatePlans(a.settings, qctx, a.cooling)
	arm := a.selectArm(tile)

	a.metrics.ObserveSelection(tile, arm)
	a.logger.Debug("budget allocated",
		"tile", tile,
		"arm", arm,
		"plan_total", plans[arm].Total(),
	)

	return domain.Decision{
		ID:       uuid.NewString(),
		Tile:     tile,
		Arm:      arm,
		Baseline: plans[domain.ArmBaseline],
		Plan:     plans[arm],
		Context:  fmt.Sprintf("%s/%s recency=%t official=%t", qctx.Intent, qctx.Complexity, qctx.Recency, qctx.OfficialOnly),
	}
}

// Feedback records a clamped reward for the (tile, arm) pair and lets the
// store decide whether it is time to persist.
func (a *Allocator) Feedback(tile int, arm domain.Arm, reward float64) {
	reward = math.Max(a.settings.RewardMin, math.Min(a.settings.RewardMax, reward))
	a.store.Update(TileKey(tile), arm, reward)
	a.store.MaybeFlush(context.Background())
}

func (a *Allocator) selectArm(tile int) domain.Arm {
	stats := a.store.TileStats(TileKey(tile))

	if a.settings.Epsilon > 0 && a.randFloat() < a.settings.Epsilon {
		arms := domain.Arms()
		return arms[a.randIntn(len(arms))]
	}

	// Cold start: every arm gets observed once, in fixed order.
	for _, arm := range domain.Arms() {
		if stats[arm].Count == 0 {
			return arm
		}
	}

	var total int64
	for _, record := range stats {
		total += record.Count
	}

	best := domain.ArmBaseline
	bestScore := math.Inf(-1)
	for _, arm := range domain.Arms() {
		record := stats[arm]
		score := record.Mean() + a.settings.ExplorationC*math.Sqrt(2*math.Log(float64(total))/float64(record.Count))
		if score > bestScore {
			best = arm
			bestScore = score
		}
	}
	return best
}

func (a *Allocator) randFloat() float64 {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.Float64()
}

func (a *Allocator) randIntn(n int) int {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.Intn(n)
}
