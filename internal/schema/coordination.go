package schema

import (
	"math"

	"scholarforge/internal/types"
)

// SkillMastery is a per-skill mastery reading inside prior diagnostics.
type SkillMastery struct {
	SkillID string  `json:"skillId"`
	Mastery float64 `json:"mastery"`
}

// PriorDiagnostics is the persisted diagnostic state read back by planning.
type PriorDiagnostics struct {
	Trend             string         `json:"trend"`
	PlateauFlag       bool           `json:"plateauFlag"`
	CalibrationStatus string         `json:"calibrationStatus"`
	FatigueRisk       string         `json:"fatigueRisk"`
	RecentAccuracy    float64        `json:"recentAccuracy"`
	Skills            []SkillMastery `json:"skills,omitempty"`
}

// CoordinationExtractorInput asks for session-composition adjustments.
type CoordinationExtractorInput struct {
	SubjectID   string           `json:"subjectId"`
	Level       int              `json:"level"`
	SkillIDs    []string         `json:"skillIds"`
	ValidFrom   string           `json:"validFrom"`
	ValidUntil  string           `json:"validUntil"`
	Diagnostics PriorDiagnostics `json:"diagnostics"`
}

// CoordinationScope bounds where and when a coordination object applies.
type CoordinationScope struct {
	SubjectID  string `json:"subjectId"`
	ValidFrom  string `json:"validFrom"`
	ValidUntil string `json:"validUntil"`
}

// CoordinationSignals restates the diagnostic signals the adjustments rest on.
type CoordinationSignals struct {
	Trend             string `json:"trend"`
	PlateauFlag       bool   `json:"plateauFlag"`
	CalibrationStatus string `json:"calibrationStatus"`
	FatigueRisk       string `json:"fatigueRisk"`
}

// SessionMix splits a session between reinforcement, target and stretch items.
type SessionMix struct {
	Reinforce float64 `json:"reinforce"`
	Target    float64 `json:"target"`
	Stretch   float64 `json:"stretch"`
}

// MixTolerance is the allowed deviation of a mix sum from 1.0.
const MixTolerance = 0.01

// Sum returns reinforce + target + stretch.
func (m SessionMix) Sum() float64 {
	return m.Reinforce + m.Target + m.Stretch
}

// Balanced reports whether the mix sums to 1.0 within MixTolerance.
func (m SessionMix) Balanced() bool {
	return math.Abs(m.Sum()-1.0) <= MixTolerance+1e-9
}

// RecommendedAdjustments is what the coordination extractor proposes.
type RecommendedAdjustments struct {
	SupportLevel    string     `json:"supportLevel"`
	DifficultyDelta float64    `json:"difficultyDelta"`
	SessionMix      SessionMix `json:"sessionMix"`
	FocusSkillIDs   []string   `json:"focusSkillIds"`
}

// CoordinationConstraints are hard limits on what planning may change.
type CoordinationConstraints struct {
	LockedLevel int      `json:"lockedLevel"`
	MustNot     []string `json:"mustNot"`
}

// HasLevelLock reports whether MustNot contains LevelLockToken.
func (c CoordinationConstraints) HasLevelLock() bool {
	for _, token := range c.MustNot {
		if token == LevelLockToken {
			return true
		}
	}
	return false
}

// CoordinationObject is the coordination extractor's output.
type CoordinationObject struct {
	SchemaVersion          string                  `json:"schemaVersion"`
	Scope                  CoordinationScope       `json:"scope"`
	Signals                CoordinationSignals     `json:"signals"`
	RecommendedAdjustments RecommendedAdjustments  `json:"recommendedAdjustments"`
	Constraints            CoordinationConstraints `json:"constraints"`
	DecisionRationale      []string                `json:"decisionRationale"`
}

// ClampDelta returns d limited to [-1, 1].
func ClampDelta(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}
	return math.Max(-1, math.Min(1, d))
}

// OrchestratorInput is the deterministic session planner's request.
type OrchestratorInput struct {
	SubjectID         string              `json:"subjectId"`
	Level             int                 `json:"level"`
	Domain            string              `json:"domain"`
	SkillIDs          []string            `json:"skillIds"`
	QuestionCount     int                 `json:"questionCount"`
	BaseDifficulty    int                 `json:"baseDifficulty"`
	ExcludeIDs        []string            `json:"excludeIds,omitempty"`
	Coordination      *CoordinationObject `json:"coordination,omitempty"`
	CoordinationRunID string              `json:"coordinationRunId,omitempty"`
}

// SessionPlan is the concrete plan for one session.
type SessionPlan struct {
	SubjectID           string     `json:"subjectId"`
	Level               int        `json:"level"`
	QuestionIDs         []string   `json:"questionIds"`
	TargetDifficulty    float64    `json:"targetDifficulty"`
	SessionMix          SessionMix `json:"sessionMix"`
	Requested           int        `json:"requested"`
	Shortfall           int        `json:"shortfall"`
	InventorySufficient bool       `json:"inventorySufficient"`
	CoordinationRunID   string     `json:"coordinationRunId,omitempty"`
}

func (CoordinationExtractorInput) Module() types.ModuleID { return types.ModuleCoordinationExtractor }
func (CoordinationObject) Module() types.ModuleID         { return types.ModuleCoordinationExtractor }
func (OrchestratorInput) Module() types.ModuleID          { return types.ModuleOrchestrator }
func (SessionPlan) Module() types.ModuleID                { return types.ModuleOrchestrator }

func (CoordinationExtractorInput) sealedInput() {}
func (CoordinationObject) sealedOutput()        {}
func (OrchestratorInput) sealedInput()          {}
func (SessionPlan) sealedOutput()               {}
