package domain

import "time"

type Arm string

const (
	ArmBaseline    Arm = "baseline"
	ArmWebHeavy    Arm = "web_heavy"
	ArmVectorHeavy Arm = "vector_heavy"
	ArmGraphHeavy  Arm = "graph_heavy"
	ArmCostSaver   Arm = "cost_saver"
)

// Arms is the fixed action space of the allocator. Adding an arm is a code
// change, not configuration, so the bandit's key space stays bounded.
func Arms() []Arm {
	return []Arm{ArmBaseline, ArmWebHeavy, ArmVectorHeavy, ArmGraphHeavy, ArmCostSaver}
}

func ValidArm(arm Arm) bool {
	for _, known := range Arms() {
		if arm == known {
			return true
		}
	}
	return false
}

// TileCount bounds the context space. Stats are keyed by (tile, arm) and
// never deleted, so the key space must stay at TileCount * len(Arms()).
const TileCount = 9

// KPlan fixes how many candidates each source contributes to one query.
type KPlan struct {
	WebK      int `json:"web_k"`
	VectorK   int `json:"vector_k"`
	GraphK    int `json:"graph_k"`
	PoolSize  int `json:"pool_size"`
	MaxTotalK int `json:"max_total_k"`
}

func (p KPlan) Total() int {
	return p.WebK + p.VectorK + p.GraphK
}

type Complexity string

const (
	ComplexitySimple    Complexity = "simple"
	ComplexityAmbiguous Complexity = "ambiguous"
	ComplexityComplex   Complexity = "complex"
)

// QueryContext is the derived query classification the allocator tiles on.
type QueryContext struct {
	Intent       string     `json:"intent"`
	Complexity   Complexity `json:"complexity"`
	Recency      bool       `json:"recency"`
	OfficialOnly bool       `json:"official_only"`
}

// Decision records one allocation choice so a later reward can be attributed
// to the right (tile, arm) pair. Request-scoped, never persisted.
type Decision struct {
	ID       string `json:"id"`
	Tile     int    `json:"tile"`
	Arm      Arm    `json:"arm"`
	Baseline KPlan  `json:"baseline"`
	Plan     KPlan  `json:"plan"`
	Context  string `json:"context"`
}

// ArmStats is the running reward aggregate for one (tile, arm) pair.
// Fields are only ever updated together under the store's lock.
type ArmStats struct {
	Count       int64     `json:"count"`
	RewardSum   float64   `json:"reward_sum"`
	RewardSqSum float64   `json:"reward_sq_sum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s ArmStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.RewardSum / float64(s.Count)
}
