package orchestrator

import (
	"fmt"
	"sort"

	"scholarforge/internal/logging"
	"scholarforge/internal/schema"
)

// Fixed adjustment profiles for the rules-based coordination object.
var (
	supportMix  = schema.SessionMix{Reinforce: 0.5, Target: 0.4, Stretch: 0.1}
	advanceMix  = schema.SessionMix{Reinforce: 0.2, Target: 0.5, Stretch: 0.3}
	maintainMix = schema.SessionMix{Reinforce: 0.3, Target: 0.5, Stretch: 0.2}
)

// maxFocusSkills bounds the focus list of a derived coordination object.
const maxFocusSkills = 3

// focusMasteryCeiling is the mastery below which a skill becomes a focus skill.
const focusMasteryCeiling = 0.6

// DeriveCoordination builds a coordination object from diagnostics alone. It is
// the fallback when the extractor module fails, and it always satisfies the
// coordination contract for the same input.
func DeriveCoordination(in schema.CoordinationExtractorInput) schema.CoordinationObject {
	d := in.Diagnostics
	sig := schema.CoordinationSignals{
		Trend:             orDefault(d.Trend, schema.TrendInsufficientData),
		PlateauFlag:       d.PlateauFlag,
		CalibrationStatus: orDefault(d.CalibrationStatus, schema.CalibrationUnknown),
		FatigueRisk:       orDefault(d.FatigueRisk, schema.FatigueLow),
	}

	var (
		adj       schema.RecommendedAdjustments
		rationale []string
	)
	switch {
	case sig.PlateauFlag || sig.Trend == schema.TrendDeclining:
		adj = schema.RecommendedAdjustments{SupportLevel: schema.SupportIncrease, DifficultyDelta: -0.5, SessionMix: supportMix}
		if sig.PlateauFlag {
			rationale = append(rationale, "Progress has plateaued; add support and reinforcement.")
		} else {
			rationale = append(rationale, "Recent accuracy is declining; add support and reinforcement.")
		}
	case sig.Trend == schema.TrendImproving && sig.CalibrationStatus == schema.CalibrationCalibrated:
		adj = schema.RecommendedAdjustments{SupportLevel: schema.SupportDecrease, DifficultyDelta: 0.5, SessionMix: advanceMix}
		rationale = append(rationale, "Accuracy is improving with calibrated confidence; add stretch.")
	default:
		adj = schema.RecommendedAdjustments{SupportLevel: schema.SupportMaintain, DifficultyDelta: 0, SessionMix: maintainMix}
		rationale = append(rationale, fmt.Sprintf("Trend is %s; keep the current balance.", sig.Trend))
	}
	if sig.FatigueRisk == schema.FatigueHigh && adj.DifficultyDelta > 0 {
		adj.DifficultyDelta = 0
		rationale = append(rationale, "Fatigue risk is high; hold difficulty.")
	}
	adj.FocusSkillIDs = focusSkills(in)
	if len(adj.FocusSkillIDs) > 0 {
		rationale = append(rationale, fmt.Sprintf("Focus on %d lower-mastery skill(s).", len(adj.FocusSkillIDs)))
	}

	obj := schema.CoordinationObject{
		SchemaVersion: schema.CoordinationSchemaVersion,
		Scope: schema.CoordinationScope{
			SubjectID:  in.SubjectID,
			ValidFrom:  in.ValidFrom,
			ValidUntil: in.ValidUntil,
		},
		Signals:                sig,
		RecommendedAdjustments: adj,
		Constraints: schema.CoordinationConstraints{
			LockedLevel: in.Level,
			MustNot:     []string{schema.LevelLockToken},
		},
		DecisionRationale: rationale,
	}
	logging.Get(logging.CategoryOrchestrator).Debug("Derived coordination for %s: support=%s delta=%.1f",
		in.SubjectID, adj.SupportLevel, adj.DifficultyDelta)
	return obj
}

// focusSkills picks requested skills whose mastery sits below the ceiling,
// weakest first.
func focusSkills(in schema.CoordinationExtractorInput) []string {
	requested := make(map[string]struct{}, len(in.SkillIDs))
	for _, id := range in.SkillIDs {
		requested[id] = struct{}{}
	}
	var weak []schema.SkillMastery
	for _, s := range in.Diagnostics.Skills {
		if _, ok := requested[s.SkillID]; ok && s.Mastery < focusMasteryCeiling {
			weak = append(weak, s)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Mastery < weak[j].Mastery })
	if len(weak) > maxFocusSkills {
		weak = weak[:maxFocusSkills]
	}
	ids := make([]string, 0, len(weak))
	for _, s := range weak {
		ids = append(ids, s.SkillID)
	}
	return ids
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
