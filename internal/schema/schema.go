// Package schema defines the typed inputs and outputs of every catalog module.
//
// Input and Output are sealed: only types in this package implement them, and
// there is exactly one concrete pair per module. Code that switches over the
// union can rely on the catalog being closed.
package schema

import "scholarforge/internal/types"

// Input is the closed union of module inputs.
type Input interface {
	Module() types.ModuleID
	sealedInput()
}

// Output is the closed union of module outputs.
type Output interface {
	Module() types.ModuleID
	sealedOutput()
}

// Enumerations shared across modules.
const (
	TrendImproving        = "improving"
	TrendStable           = "stable"
	TrendDeclining        = "declining"
	TrendInsufficientData = "insufficient_data"

	CalibrationCalibrated     = "calibrated"
	CalibrationOverconfident  = "overconfident"
	CalibrationUnderconfident = "underconfident"
	CalibrationUnknown        = "unknown"

	FatigueLow    = "low"
	FatigueMedium = "medium"
	FatigueHigh   = "high"

	ErrorPatternNone       = "none"
	ErrorPatternConceptual = "conceptual"
	ErrorPatternProcedural = "procedural"
	ErrorPatternCareless   = "careless"
	ErrorPatternUnknown    = "unknown"

	LevelEmerging   = "emerging"
	LevelDeveloping = "developing"
	LevelProficient = "proficient"
	LevelMastered   = "mastered"

	SupportIncrease = "INCREASE"
	SupportMaintain = "MAINTAIN"
	SupportDecrease = "DECREASE"

	StrategyRefocus   = "refocus"
	StrategyDecompose = "decompose"
	StrategyExample   = "worked_analogy"
	StrategyNarrow    = "narrow_choices"
)

// LevelLockToken must appear in every CoordinationObject's must-not list.
const LevelLockToken = "change_level"

// CoordinationSchemaVersion is stamped on coordination objects built locally.
const CoordinationSchemaVersion = "coordination.v1"

// Difficulty bounds for items.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Scaffold levels for the tutor, lightest to most explicit.
const (
	MinScaffoldLevel = 1
	MaxScaffoldLevel = 4
)

// MasteryLevelFor returns the mastery band label for a mastery estimate.
func MasteryLevelFor(mastery float64) string {
	switch {
	case mastery < 0.4:
		return LevelEmerging
	case mastery < 0.6:
		return LevelDeveloping
	case mastery < 0.85:
		return LevelProficient
	default:
		return LevelMastered
	}
}
