package contract

import (
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

func normalizeCoordination(out schema.CoordinationObject, _ schema.CoordinationExtractorInput) schema.CoordinationObject {
	out.RecommendedAdjustments.DifficultyDelta = schema.ClampDelta(out.RecommendedAdjustments.DifficultyDelta)
	return out
}

func validateCoordination(out schema.CoordinationObject, in schema.CoordinationExtractorInput) []string {
	var p problems
	p.nonEmpty("schemaVersion", out.SchemaVersion)
	p.require(out.Scope.SubjectID == in.SubjectID,
		"scope.subjectId %q does not match input subject", out.Scope.SubjectID)
	p.nonEmpty("scope.validFrom", out.Scope.ValidFrom)
	p.nonEmpty("scope.validUntil", out.Scope.ValidUntil)

	sig := out.Signals
	p.oneOf("signals.trend", sig.Trend,
		schema.TrendImproving, schema.TrendStable, schema.TrendDeclining, schema.TrendInsufficientData)
	p.oneOf("signals.calibrationStatus", sig.CalibrationStatus,
		schema.CalibrationCalibrated, schema.CalibrationOverconfident,
		schema.CalibrationUnderconfident, schema.CalibrationUnknown)
	p.oneOf("signals.fatigueRisk", sig.FatigueRisk, schema.FatigueLow, schema.FatigueMedium, schema.FatigueHigh)
	p.require(sig.PlateauFlag == in.Diagnostics.PlateauFlag,
		"signals.plateauFlag=%t does not echo diagnostics plateauFlag=%t", sig.PlateauFlag, in.Diagnostics.PlateauFlag)

	adj := out.RecommendedAdjustments
	p.oneOf("recommendedAdjustments.supportLevel", adj.SupportLevel,
		schema.SupportIncrease, schema.SupportMaintain, schema.SupportDecrease)
	if sig.PlateauFlag {
		p.require(adj.SupportLevel == schema.SupportIncrease,
			"a plateau requires supportLevel %s, got %s", schema.SupportIncrease, adj.SupportLevel)
	}
	p.require(adj.DifficultyDelta >= -1 && adj.DifficultyDelta <= 1,
		"recommendedAdjustments.difficultyDelta must be within [-1,1], got %g", adj.DifficultyDelta)
	p.mix("recommendedAdjustments.sessionMix", adj.SessionMix)
	p.subset("recommendedAdjustments.focusSkillIds", adj.FocusSkillIDs, in.SkillIDs)

	p.require(out.Constraints.LockedLevel == in.Level,
		"constraints.lockedLevel %d does not equal input level %d", out.Constraints.LockedLevel, in.Level)
	p.require(out.Constraints.HasLevelLock(),
		"constraints.mustNot must contain %q", schema.LevelLockToken)
	p.require(len(out.DecisionRationale) > 0, "decisionRationale must not be empty")
	return p
}

func (p *problems) mix(field string, m schema.SessionMix) {
	p.unit(field+".reinforce", m.Reinforce)
	p.unit(field+".target", m.Target)
	p.unit(field+".stretch", m.Stretch)
	p.require(m.Balanced(), "%s sums to %.3f, want 1.0±%.2f", field, m.Sum(), schema.MixTolerance)
}

func validateSessionPlan(out schema.SessionPlan, in schema.OrchestratorInput) []string {
	var p problems
	p.require(out.Level == in.Level, "plan level %d differs from requested level %d", out.Level, in.Level)
	p.require(out.TargetDifficulty >= schema.MinDifficulty && out.TargetDifficulty <= schema.MaxDifficulty,
		"targetDifficulty must be within [%d,%d], got %g", schema.MinDifficulty, schema.MaxDifficulty, out.TargetDifficulty)
	p.mix("sessionMix", out.SessionMix)
	p.require(len(out.QuestionIDs) <= in.QuestionCount,
		"plan has %d questions, requested %d", len(out.QuestionIDs), in.QuestionCount)
	p.require(out.Shortfall == in.QuestionCount-len(out.QuestionIDs),
		"shortfall %d does not account for %d of %d questions", out.Shortfall, len(out.QuestionIDs), in.QuestionCount)
	p.require(out.InventorySufficient == (out.Shortfall == 0),
		"inventorySufficient=%t contradicts shortfall %d", out.InventorySufficient, out.Shortfall)

	excluded := toSet(in.ExcludeIDs)
	seen := make(map[string]struct{}, len(out.QuestionIDs))
	for _, id := range out.QuestionIDs {
		if _, dup := seen[id]; dup {
			p.addf("question %q is planned twice", id)
		}
		seen[id] = struct{}{}
		if _, ex := excluded[id]; ex {
			p.addf("question %q was explicitly excluded", id)
		}
	}
	return p
}

func validateSafetyReport(out schema.SafetyGateOutput, _ schema.SafetyGateInput) []string {
	var p problems
	p.oneOf("decision", string(out.Decision),
		string(types.DecisionAllow), string(types.DecisionEscalate), string(types.DecisionBlock))
	failed := 0
	for _, r := range out.Reasons {
		if !r.Pass {
			failed++
		}
	}
	p.require((out.Decision == types.DecisionAllow) == (failed == 0),
		"decision %s is inconsistent with %d triggered rules", out.Decision, failed)
	return p
}

func validateAuditReport(out schema.AuditGateOutput, _ schema.AuditGateInput) []string {
	var p problems
	p.require(!out.DriftDetected, "driftDetected is reserved and must be false")
	if out.Passed() {
		for _, v := range out.Violations {
			if v.Code == types.CodeMissingField || v.Code == types.CodeRoleImpurity {
				p.addf("audit passed despite %s", v.Reason())
			}
		}
	}
	return p
}
