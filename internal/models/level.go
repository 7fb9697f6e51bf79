package models

import (
	"errors"
	"fmt"
)

// Level is a drawdown threshold and the investment multiplier suggested
// when the threshold is crossed, e.g. {0.2, 4}: a 20% decline suggests 4x.
type Level struct {
	Trigger float64 `json:"trigger" mapstructure:"trigger" yaml:"trigger"`
	Factor  float64 `json:"factor" mapstructure:"factor" yaml:"factor"`
}

// CompareLevels orders levels by trigger. A nil level sorts below every level.
func CompareLevels(a, b *Level) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Trigger < b.Trigger:
		return -1
	case a.Trigger > b.Trigger:
		return 1
	default:
		return 0
	}
}

// SameLevel reports whether a and b denote the same level, both nil included.
func SameLevel(a, b *Level) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// LevelTable is an ordered set of levels with strictly increasing triggers.
type LevelTable []Level

// DefaultLevelTable returns the 10/20/30/40/50% table with 2x..10x factors.
func DefaultLevelTable() LevelTable {
	return LevelTable{
		{Trigger: 0.1, Factor: 2},
		{Trigger: 0.2, Factor: 4},
		{Trigger: 0.3, Factor: 6},
		{Trigger: 0.4, Factor: 8},
		{Trigger: 0.5, Factor: 10},
	}
}

// Validate checks trigger range, factor sign, and trigger ordering.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return errors.New("level table must not be empty")
	}
	for i, l := range t {
		if l.Trigger <= 0 || l.Trigger > 1 {
			return fmt.Errorf("level %d: trigger %v must be in (0, 1]", i, l.Trigger)
		}
		if l.Factor <= 0 {
			return fmt.Errorf("level %d: factor %v must be positive", i, l.Factor)
		}
		if i > 0 && l.Trigger <= t[i-1].Trigger {
			return fmt.Errorf("level %d: triggers must be strictly increasing", i)
		}
	}
	return nil
}

// Highest returns the level with the largest trigger that is <= diff, or
// nil if no trigger qualifies.
func (t LevelTable) Highest(diff float64) *Level {
	for i := len(t) - 1; i >= 0; i-- {
		if diff >= t[i].Trigger {
			l := t[i]
			return &l
		}
	}
	return nil
}
