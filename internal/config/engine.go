package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when engine configuration fails validation.
var ErrInvalidConfig = errors.New("invalid engine config")

// EngineConfigVersion is the current config.json schema version.
const EngineConfigVersion = 1

// DecayAlgorithm selects how pattern vitality decays over time.
type DecayAlgorithm string

const (
	DecayExponential DecayAlgorithm = "exponential"
	DecayLinear      DecayAlgorithm = "linear"
	DecayHybrid      DecayAlgorithm = "hybrid"
)

// Valid reports whether a is a known algorithm.
func (a DecayAlgorithm) Valid() bool {
	switch a {
	case DecayExponential, DecayLinear, DecayHybrid:
		return true
	}
	return false
}

// Engine is the runtime-tunable configuration persisted as config.json in
// the pattern store. A run takes a copy at start and never observes later
// edits.
type Engine struct {
	Version    int             `json:"version"`
	Capacity   CapacityConfig  `json:"capacity"`
	Decay      DecayConfig     `json:"decay"`
	Thresholds ThresholdConfig `json:"thresholds"`
	Eviction   EvictionConfig  `json:"eviction"`
}

// CapacityConfig bounds store growth.
type CapacityConfig struct {
	MaxPatternsPerScope int `json:"maxPatternsPerScope"`
	MaxClusters         int `json:"maxClusters"`
	MaxSessions         int `json:"maxSessions"`
}

// DecayConfig parameterizes the decay scorer.
type DecayConfig struct {
	Algorithm    DecayAlgorithm `json:"algorithm"`
	HalfLifeDays float64        `json:"halfLifeDays"`
	Weights      DecayWeights   `json:"weights"`
}

// DecayWeights are the hybrid algorithm component weights.
type DecayWeights struct {
	Recency     float64 `json:"recency"`
	Frequency   float64 `json:"frequency"`
	SuccessRate float64 `json:"successRate"`
}

// Sum returns the total of all weights.
func (w DecayWeights) Sum() float64 {
	return w.Recency + w.Frequency + w.SuccessRate
}

// ThresholdConfig holds similarity thresholds in [0,1].
type ThresholdConfig struct {
	Dedup   float64 `json:"dedup"`
	Cluster float64 `json:"cluster"`
}

// EvictionConfig controls which patterns eviction may never remove.
// A zero ProtectFrequency or ProtectRecentDays disables that rule.
type EvictionConfig struct {
	ProtectFrequency              int     `json:"protectFrequency"`
	ProtectRecentDays             float64 `json:"protectRecentDays"`
	ProtectClusterRepresentatives bool    `json:"protectClusterRepresentatives"`
}

// DefaultEngine returns the engine configuration written for a new store.
func DefaultEngine() Engine {
	return Engine{
		Version: EngineConfigVersion,
		Capacity: CapacityConfig{
			MaxPatternsPerScope: 100,
			MaxClusters:         50,
			MaxSessions:         10,
		},
		Decay: DecayConfig{
			Algorithm:    DecayHybrid,
			HalfLifeDays: 90,
			Weights: DecayWeights{
				Recency:     0.5,
				Frequency:   0.3,
				SuccessRate: 0.2,
			},
		},
		Thresholds: ThresholdConfig{
			Dedup:   0.9,
			Cluster: 0.75,
		},
		Eviction: EvictionConfig{
			ProtectFrequency:              5,
			ProtectRecentDays:             7,
			ProtectClusterRepresentatives: true,
		},
	}
}

// Validate checks every engine invariant and reports all violations.
func (e *Engine) Validate() error {
	var errs []error

	if e.Version != EngineConfigVersion {
		errs = append(errs, fmt.Errorf("unsupported version %d", e.Version))
	}

	if e.Capacity.MaxPatternsPerScope < 1 {
		errs = append(errs, errors.New("capacity.maxPatternsPerScope must be >= 1"))
	}
	if e.Capacity.MaxClusters < 1 {
		errs = append(errs, errors.New("capacity.maxClusters must be >= 1"))
	}
	if e.Capacity.MaxSessions < 1 {
		errs = append(errs, errors.New("capacity.maxSessions must be >= 1"))
	}

	if !e.Decay.Algorithm.Valid() {
		errs = append(errs, fmt.Errorf("decay.algorithm %q is not one of exponential, linear, hybrid", e.Decay.Algorithm))
	}
	if !(e.Decay.HalfLifeDays > 0) {
		errs = append(errs, errors.New("decay.halfLifeDays must be > 0"))
	}
	w := e.Decay.Weights
	if w.Recency < 0 || w.Frequency < 0 || w.SuccessRate < 0 {
		errs = append(errs, errors.New("decay.weights must be non-negative"))
	}
	if e.Decay.Algorithm == DecayHybrid && math.Abs(w.Sum()-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("decay.weights must sum to 1, got %g", w.Sum()))
	}

	if !inUnit(e.Thresholds.Dedup) {
		errs = append(errs, errors.New("thresholds.dedup must be in [0,1]"))
	}
	if !inUnit(e.Thresholds.Cluster) {
		errs = append(errs, errors.New("thresholds.cluster must be in [0,1]"))
	}

	if e.Eviction.ProtectFrequency < 0 {
		errs = append(errs, errors.New("eviction.protectFrequency must be >= 0"))
	}
	if e.Eviction.ProtectRecentDays < 0 {
		errs = append(errs, errors.New("eviction.protectRecentDays must be >= 0"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseEngine decodes and validates config.json content.
// Fields absent from the document keep their default values.
func ParseEngine(data []byte) (Engine, error) {
	cfg := DefaultEngine()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Engine{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

// Marshal encodes the engine config as indented JSON.
func (e *Engine) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
