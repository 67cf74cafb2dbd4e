package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the optional tuning file. Everything here has a code default;
// a missing or malformed file is logged and ignored, never fatal.
type Settings struct {
	Fusion struct {
		RRFK          int                `yaml:"rrf_k"`
		SourceWeights map[string]float64 `yaml:"source_weights"`
	} `yaml:"fusion"`

	Bandit struct {
		MinPerSource    int      `yaml:"min_per_source"`
		StepSize        int      `yaml:"step_size"`
		MaxTotalK       int      `yaml:"max_total_k"`
		PoolFloor       int      `yaml:"pool_floor"`
		Epsilon         *float64 `yaml:"epsilon"`
		ExplorationC    float64  `yaml:"exploration_c"`
		RecencyKeywords []string `yaml:"recency_keywords"`
		FlushMinSeconds int      `yaml:"flush_min_seconds"`
	} `yaml:"bandit"`

	Reward struct {
		DocGainScale     float64  `yaml:"doc_gain_scale"`
		LatencyPenalty   float64  `yaml:"latency_penalty"`
		FailurePenalty   float64  `yaml:"failure_penalty"`
		AuthorityBonus   float64  `yaml:"authority_bonus"`
		CoverageBonus    float64  `yaml:"coverage_bonus"`
		DuplicatePenalty float64  `yaml:"duplicate_penalty"`
		NeedleBonus      float64  `yaml:"needle_bonus"`
		Min              *float64 `yaml:"min"`
		Max              *float64 `yaml:"max"`
	} `yaml:"reward"`
}

// LoadSettings reads the tuning file when a path is configured. Zero values
// in the result mean "keep the code default".
func LoadSettings(path string, logger *slog.Logger) Settings {
	if logger == nil {
		logger = slog.Default()
	}
	var settings Settings
	if path == "" {
		return settings
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("settings file unreadable, using defaults", "path", path, "error", err)
		return Settings{}
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		logger.Warn("settings file malformed, using defaults", "path", path, "error", err)
		return Settings{}
	}
	logger.Info("settings loaded", "path", path)
	return settings
}

func (s Settings) Validate() error {
	if s.Fusion.RRFK < 0 {
		return fmt.Errorf("fusion.rrf_k must be non-negative")
	}
	for source, weight := range s.Fusion.SourceWeights {
		if weight < 0 {
			return fmt.Errorf("fusion.source_weights.%s must be non-negative", source)
		}
	}
	if s.Bandit.Epsilon != nil && (*s.Bandit.Epsilon < 0 || *s.Bandit.Epsilon > 1) {
		return fmt.Errorf("bandit.epsilon must be in [0,1]")
	}
	if s.Reward.Min != nil && s.Reward.Max != nil && *s.Reward.Min >= *s.Reward.Max {
		return fmt.Errorf("reward.min must be below reward.max")
	}
	return nil
}
