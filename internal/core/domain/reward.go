package domain

// RewardOutcome carries the raw signals the orchestrator observed for one
// completed retrieval. Shaping these into a reward is policy, not contract.
type RewardOutcome struct {
	DocsRetrieved      int     `json:"docs_retrieved"`
	BaselineDocs       int     `json:"baseline_docs"`
	LatencyBudgetRatio float64 `json:"latency_budget_ratio"`
	Failed             bool    `json:"failed"`
	AuthorityShare     float64 `json:"authority_share"`
	Coverage           float64 `json:"coverage"`
	DuplicateRatio     float64 `json:"duplicate_ratio"`
	NeedleContribution float64 `json:"needle_contribution"`
}

// RewardEvent attributes an outcome to the (tile, arm) pair that produced it.
type RewardEvent struct {
	DecisionID string        `json:"decision_id"`
	Tile       int           `json:"tile"`
	Arm        Arm           `json:"arm"`
	Outcome    RewardOutcome `json:"outcome"`
}

type RetrieveOptions struct {
	TopK         int          `json:"top_k"`
	SourceFilter string       `json:"source_filter"`
	Context      QueryContext `json:"context"`
}

type RetrievalResult struct {
	Candidates []Candidate `json:"candidates"`
	Decision   Decision    `json:"decision"`
}
