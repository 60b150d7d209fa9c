package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HealthPolicy holds the integrity scoring thresholds. Durations accept Go syntax ("36h") in YAML.
type HealthPolicy struct {
	Ceiling float64 `yaml:"ceiling"`

	ExpectedCadence     time.Duration `yaml:"expected_cadence"`
	StalenessPenalty    float64       `yaml:"staleness_penalty"`
	MaxStalenessPenalty float64       `yaml:"max_staleness_penalty"`

	FailureWindow     time.Duration `yaml:"failure_window"`
	FailurePenalty    float64       `yaml:"failure_penalty"`
	MaxFailurePenalty float64       `yaml:"max_failure_penalty"`

	ThrashPerDay  float64 `yaml:"thrash_per_day"`
	ThrashPenalty float64 `yaml:"thrash_penalty"`

	CorruptedPenalty float64 `yaml:"corrupted_penalty"`

	// StuckAfter defaults to the lock lease when zero.
	StuckAfter   time.Duration `yaml:"stuck_after"`
	StuckPenalty float64       `yaml:"stuck_penalty"`

	OversizeBytes   int64   `yaml:"oversize_bytes"`
	OversizePenalty float64 `yaml:"oversize_penalty"`

	// CorruptionThreshold is the score under which the health sweep marks a namespace corrupted.
	CorruptionThreshold float64 `yaml:"corruption_threshold"`
}

func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		Ceiling:             1.0,
		ExpectedCadence:     24 * time.Hour,
		StalenessPenalty:    0.1,
		MaxStalenessPenalty: 0.3,
		FailureWindow:       24 * time.Hour,
		FailurePenalty:      0.15,
		MaxFailurePenalty:   0.45,
		ThrashPerDay:        24,
		ThrashPenalty:       0.2,
		CorruptedPenalty:    0.5,
		StuckPenalty:        0.1,
		OversizeBytes:       512 << 20,
		OversizePenalty:     0.05,
		CorruptionThreshold: 0.3,
	}
}

// LoadHealthPolicy overlays the YAML file at path onto the defaults. An empty path yields the defaults.
func LoadHealthPolicy(path string) (HealthPolicy, error) {
	p := DefaultHealthPolicy()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read health policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse health policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p HealthPolicy) Validate() error {
	switch {
	case p.Ceiling <= 0 || p.Ceiling > 1:
		return fmt.Errorf("health policy: ceiling must be in (0,1], got %v", p.Ceiling)
	case p.ExpectedCadence <= 0:
		return fmt.Errorf("health policy: expected_cadence must be positive")
	case p.FailureWindow <= 0:
		return fmt.Errorf("health policy: failure_window must be positive")
	case p.CorruptionThreshold < 0 || p.CorruptionThreshold > p.Ceiling:
		return fmt.Errorf("health policy: corruption_threshold must be in [0,ceiling], got %v", p.CorruptionThreshold)
	}
	for name, v := range map[string]float64{
		"staleness_penalty":     p.StalenessPenalty,
		"max_staleness_penalty": p.MaxStalenessPenalty,
		"failure_penalty":       p.FailurePenalty,
		"max_failure_penalty":   p.MaxFailurePenalty,
		"thrash_penalty":        p.ThrashPenalty,
		"corrupted_penalty":     p.CorruptedPenalty,
		"stuck_penalty":         p.StuckPenalty,
		"oversize_penalty":      p.OversizePenalty,
	} {
		if v < 0 {
			return fmt.Errorf("health policy: %s must not be negative", name)
		}
	}
	return nil
}
