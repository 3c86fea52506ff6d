package core

import (
	"time"
)

// Score bounds. Every urgency value in the system is clamped to this
// closed interval.
const (
	MinScore = 1.0
	MaxScore = 10.0
)

// FactorTier maps a time threshold to a multiplier. Tiers are evaluated
// in order; the first matching tier wins.
type FactorTier struct {
	Within time.Duration
	Factor float64
}

// ScoringConfig holds the deadline and staleness factor tables. Both
// are overridable through configuration; the zero value falls back to
// the defaults.
type ScoringConfig struct {
	// DeadlineTiers apply when time-to-deadline is below Within.
	// A deadline already passed uses the first tier.
	DeadlineTiers []FactorTier
	// StalenessTiers apply when item age is above Within.
	StalenessTiers []FactorTier
}

// DefaultScoringConfig returns the standard factor tables.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DeadlineTiers: []FactorTier{
			{Within: 4 * time.Hour, Factor: 2.0},
			{Within: 24 * time.Hour, Factor: 1.5},
			{Within: 48 * time.Hour, Factor: 1.25},
			{Within: 72 * time.Hour, Factor: 1.1},
		},
		StalenessTiers: []FactorTier{
			{Within: 7 * 24 * time.Hour, Factor: 1.3},
			{Within: 4 * 24 * time.Hour, Factor: 1.2},
			{Within: 2 * 24 * time.Hour, Factor: 1.1},
		},
	}
}

// Scorer computes bounded urgency scores. It is pure and performs no
// I/O; all clock input arrives as arguments.
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer creates a scorer from the given factor tables. Empty tables
// fall back to the defaults.
func NewScorer(cfg ScoringConfig) *Scorer {
	defaults := DefaultScoringConfig()
	if len(cfg.DeadlineTiers) == 0 {
		cfg.DeadlineTiers = defaults.DeadlineTiers
	}
	if len(cfg.StalenessTiers) == 0 {
		cfg.StalenessTiers = defaults.StalenessTiers
	}
	return &Scorer{cfg: cfg}
}

// Score computes base × deadlineFactor × relationshipFactor ×
// stalenessFactor, clamped to [MinScore, MaxScore]. The multiplicative
// composition lets each factor push the score upward independently;
// clamping prevents runaway compounding. A zero relMultiplier means
// the item has no associated relationship and contributes 1.0.
func (s *Scorer) Score(base float64, deadline *time.Time, createdAt time.Time, relMultiplier float64, now time.Time) float64 {
	if relMultiplier <= 0 {
		relMultiplier = 1.0
	}
	result := base * s.DeadlineFactor(deadline, now) * relMultiplier * s.StalenessFactor(createdAt, now)
	return ClampScore(result)
}

// DeadlineFactor returns the multiplier for the given deadline. An
// overdue deadline maps to the tightest tier.
func (s *Scorer) DeadlineFactor(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 1.0
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return s.cfg.DeadlineTiers[0].Factor
	}
	for _, tier := range s.cfg.DeadlineTiers {
		if remaining < tier.Within {
			return tier.Factor
		}
	}
	return 1.0
}

// StalenessFactor returns the multiplier for the item's unaddressed
// age.
func (s *Scorer) StalenessFactor(createdAt time.Time, now time.Time) float64 {
	age := now.Sub(createdAt)
	for _, tier := range s.cfg.StalenessTiers {
		if age > tier.Within {
			return tier.Factor
		}
	}
	return 1.0
}

// ClampScore bounds a score to the [MinScore, MaxScore] interval.
func ClampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
