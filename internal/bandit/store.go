package bandit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// Store holds the per-(tile, arm) reward aggregates behind a single lock.
// Flushes to persistence are rate limited and single-flight so a burst of
// feedback cannot hammer the backing store.
type Store struct {
	mu    sync.RWMutex
	stats ports.StatsSnapshot

	persistence ports.StatsPersistence
	limiter     *rate.Limiter
	flushMu     sync.Mutex
	metrics     ports.MetricsRecorder
	logger      *slog.Logger
}

func NewStore(persistence ports.StatsPersistence, minFlushInterval time.Duration, metrics ports.MetricsRecorder, logger *slog.Logger) *Store {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if minFlushInterval <= 0 {
		minFlushInterval = 30 * time.Second
	}
	return &Store{
		stats:       ports.StatsSnapshot{},
		persistence: persistence,
		limiter:     rate.NewLimiter(rate.Every(minFlushInterval), 1),
		metrics:     metrics,
		logger:      logger,
	}
}

// Load replaces the in-memory state from persistence. Failures leave the
// store empty and are logged, never returned: the allocator can always run
// on the heuristic baseline.
func (s *Store) Load(ctx context.Context) {
	if s.persistence == nil {
		return
	}
	snapshot, err := s.persistence.Load(ctx)
	if err != nil {
		s.logger.Warn("bandit state load failed, starting empty", "error", err)
		return
	}
	if snapshot == nil {
		snapshot = ports.StatsSnapshot{}
	}
	s.mu.Lock()
	s.stats = snapshot
	s.mu.Unlock()
	s.logger.Info("bandit state loaded", "tiles", len(snapshot))
}

// Update applies one observed reward to a (tile, arm) record. All fields of
// the record move together under the lock.
func (s *Store) Update(tileKey string, arm domain.Arm, reward float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tile, ok := s.stats[tileKey]
	if !ok {
		tile = map[domain.Arm]domain.ArmStats{}
		s.stats[tileKey] = tile
	}
	record := tile[arm]
	record.Count++
	record.RewardSum += reward
	record.RewardSqSum += reward * reward
	record.UpdatedAt = time.Now().UTC()
	tile[arm] = record
}

// TileStats returns a copy of one tile's records.
func (s *Store) TileStats(tileKey string) map[domain.Arm]domain.ArmStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Arm]domain.ArmStats, len(s.stats[tileKey]))
	for arm, record := range s.stats[tileKey] {
		out[arm] = record
	}
	return out
}

// Snapshot deep-copies the full state for persistence.
func (s *Store) Snapshot() ports.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(ports.StatsSnapshot, len(s.stats))
	for tileKey, tile := range s.stats {
		copied := make(map[domain.Arm]domain.ArmStats, len(tile))
		for arm, record := range tile {
			copied[arm] = record
		}
		out[tileKey] = copied
	}
	return out
}

// MaybeFlush persists the state if the minimum interval has elapsed and no
// other flush is in flight. Skipped flushes are not errors: the next update
// will try again.
func (s *Store) MaybeFlush(ctx context.Context) {
	if s.persistence == nil || !s.limiter.Allow() {
		return
	}
	s.flush(ctx)
}

// Flush persists unconditionally. Used at shutdown.
func (s *Store) Flush(ctx context.Context) {
	if s.persistence == nil {
		return
	}
	s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) {
	if !s.flushMu.TryLock() {
		return
	}
	defer s.flushMu.Unlock()

	snapshot := s.Snapshot()
	if err := s.persistence.Save(ctx, snapshot); err != nil {
		s.logger.Warn("bandit state flush failed", "error", err)
		s.metrics.ObserveFlush(true)
		return
	}
	s.metrics.ObserveFlush(false)
}
