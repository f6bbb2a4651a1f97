package contract

import "scholarforge/internal/schema"

const (
	maxMisconceptions  = 3
	minTrendScores     = 3
	maxNarrativeRunes  = 1200
	maxParentNextSteps = 3
	minParentNextSteps = 1
)

func validateMastery(out schema.MasteryEstimatorOutput, in schema.MasteryEstimatorInput) []string {
	var p problems
	p.unit("mastery", out.Mastery)
	p.unit("confidence", out.Confidence)
	p.require(out.EvidenceCount == len(in.Attempts),
		"evidenceCount %d does not match %d supplied attempts", out.EvidenceCount, len(in.Attempts))
	p.oneOf("level", out.Level,
		schema.LevelEmerging, schema.LevelDeveloping, schema.LevelProficient, schema.LevelMastered)
	if want := schema.MasteryLevelFor(out.Mastery); out.Level != want {
		p.addf("level %q disagrees with mastery %.2f (expected %q)", out.Level, out.Mastery, want)
	}
	return p
}

func validateTrend(out schema.TrendMonitorOutput, in schema.TrendMonitorInput) []string {
	var p problems
	p.oneOf("trend", out.Trend,
		schema.TrendImproving, schema.TrendStable, schema.TrendDeclining, schema.TrendInsufficientData)
	p.oneOf("fatigueRisk", out.FatigueRisk, schema.FatigueLow, schema.FatigueMedium, schema.FatigueHigh)
	if len(in.Scores) < minTrendScores {
		p.require(out.Trend == schema.TrendInsufficientData,
			"%d scores require trend %q", len(in.Scores), schema.TrendInsufficientData)
	}
	return p
}

func validateMisconceptions(out schema.MisconceptionDiagnoserOutput, _ schema.MisconceptionDiagnoserInput) []string {
	var p problems
	p.require(len(out.Misconceptions) <= maxMisconceptions,
		"at most %d misconceptions allowed, got %d", maxMisconceptions, len(out.Misconceptions))

	codes := make([]string, 0, len(out.Misconceptions))
	for i, m := range out.Misconceptions {
		var mp problems
		mp.nonEmpty("code", m.Code)
		mp.nonEmpty("description", m.Description)
		mp.require(m.Evidence >= 0, "evidence must not be negative")
		p.prefixed(indexPrefix("misconceptions", i), mp)
		codes = append(codes, m.Code)
	}
	if out.PrimaryMisconception != "" {
		p.subset("primaryMisconception", []string{out.PrimaryMisconception}, codes)
	}
	return p
}

func validateProgress(out schema.ProgressTrackerOutput, in schema.ProgressTrackerInput) []string {
	var p problems
	p.nonEmpty("summary", out.Summary)

	ids := snapshotIDs(in.Skills)
	p.subset("skillsImproved", out.SkillsImproved, ids)
	p.subset("skillsNeedingPractice", out.SkillsNeedingPractice, ids)

	improved := toSet(out.SkillsImproved)
	for _, id := range out.SkillsNeedingPractice {
		if _, both := improved[id]; both {
			p.addf("skill %q is listed as both improved and needing practice", id)
		}
	}
	return p
}

func validateParentReport(out schema.ParentReporterOutput, _ schema.ParentReporterInput) []string {
	var p problems
	p.nonEmpty("headline", out.Headline)
	p.nonEmpty("narrative", out.Narrative)
	p.maxRunes("narrative", out.Narrative, maxNarrativeRunes)
	p.require(len(out.NextSteps) >= minParentNextSteps && len(out.NextSteps) <= maxParentNextSteps,
		"nextSteps must have %d..%d entries, got %d", minParentNextSteps, maxParentNextSteps, len(out.NextSteps))
	for i, step := range out.NextSteps {
		p.nonEmpty(indexPrefix("nextSteps", i)+"step", step)
	}
	return p
}

func validateCohort(out schema.CohortAnalystOutput, in schema.CohortAnalystInput) []string {
	var p problems
	ids := make([]string, 0, len(in.Skills))
	for _, s := range in.Skills {
		ids = append(ids, s.SkillID)
	}
	p.subset("focusSkillIds", out.FocusSkillIDs, ids)
	for i, insight := range out.Insights {
		p.subset(indexPrefix("insights", i)+"skillId", []string{insight.SkillID}, ids)
		p.nonEmpty(indexPrefix("insights", i)+"observation", insight.Observation)
	}
	learners := in.TotalLearners()
	p.require(out.AtRiskCount >= 0 && out.AtRiskCount <= learners,
		"atRiskCount must be within [0,%d], got %d", learners, out.AtRiskCount)
	return p
}

func snapshotIDs(skills []schema.SkillSnapshot) []string {
	ids := make([]string, 0, len(skills))
	for _, s := range skills {
		ids = append(ids, s.SkillID)
	}
	return ids
}
