package catalog

import (
	"regexp"

	"scholarforge/internal/types"
)

// Shared role-purity patterns. Each names a voice that belongs to some other module.
var (
	praiseVoice    = `(?i)\b(great job|well done|good work|nice work|awesome job)\b`
	solutionVoice  = `(?i)\bthe (correct |right )?(answer|solution) is\b`
	pickVoice      = `(?i)\b(pick|choose|select) (option|choice|answer) [a-d1-4]\b`
	hintVoice      = `(?i)\bhint\s*:`
	itemVoice      = `(?i)\bwhich of the following\b`
	parentVoice    = `(?i)\b(your child|dear parent)\b`
	directiveVoice = `(?i)\b(you should|you must) (study|practi[cs]e)\b`
)

// Default returns the fixed fourteen-module catalog.
func Default() *Catalog {
	c, err := New(defaultDescriptors()...)
	if err != nil {
		// The default table is static; a failure here is a programming error.
		panic(err)
	}
	return c
}

func defaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:                 types.ModuleItemGenerator,
			Kind:               types.KindGenerative,
			PromptVersion:      "item_generator.v4",
			Audience:           types.AudienceChild,
			Tier:               types.TierBalanced,
			MaxOutputTokens:    4096,
			RequiredFields:     []string{"items"},
			ItemsField:         "items",
			ItemRequiredFields: []string{"stem", "options", "correctIndex", "explanation", "difficulty", "skillId"},
			ForbiddenPatterns:  compile(praiseVoice, hintVoice, parentVoice),
		},
		{
			ID:                types.ModuleResponseEvaluator,
			Kind:              types.KindGenerative,
			PromptVersion:     "response_evaluator.v3",
			Audience:          types.AudienceChild,
			Tier:              types.TierFast,
			MaxOutputTokens:   1024,
			RequiredFields:    []string{"isCorrect", "score", "feedback", "errorPattern"},
			ForbiddenPatterns: compile(itemVoice, parentVoice, solutionVoice),
		},
		{
			ID:                types.ModuleConfidenceInterpreter,
			Kind:              types.KindGenerative,
			PromptVersion:     "confidence_interpreter.v2",
			Audience:          types.AudienceSystem,
			Tier:              types.TierFast,
			MaxOutputTokens:   768,
			RequiredFields:    []string{"calibrationStatus", "confidence", "interpretation"},
			ForbiddenPatterns: compile(praiseVoice, parentVoice, hintVoice),
		},
		{
			ID:                types.ModuleMasteryEstimator,
			Kind:              types.KindGenerative,
			PromptVersion:     "mastery_estimator.v3",
			Audience:          types.AudienceSystem,
			Tier:              types.TierBalanced,
			MaxOutputTokens:   768,
			RequiredFields:    []string{"mastery", "confidence", "evidenceCount", "level"},
			ForbiddenPatterns: compile(praiseVoice, parentVoice, hintVoice),
		},
		{
			ID:                types.ModuleTrendMonitor,
			Kind:              types.KindGenerative,
			PromptVersion:     "trend_monitor.v2",
			Audience:          types.AudienceSystem,
			Tier:              types.TierFast,
			MaxOutputTokens:   768,
			RequiredFields:    []string{"trend", "plateauFlag", "fatigueRisk", "observations"},
			ForbiddenPatterns: compile(praiseVoice, parentVoice, hintVoice),
		},
		{
			ID:                types.ModuleMisconceptionDiagnoser,
			Kind:              types.KindGenerative,
			PromptVersion:     "misconception_diagnoser.v2",
			Audience:          types.AudienceSystem,
			Tier:              types.TierBalanced,
			MaxOutputTokens:   1024,
			RequiredFields:    []string{"misconceptions", "primaryMisconception"},
			ForbiddenPatterns: compile(praiseVoice, parentVoice, hintVoice),
		},
		{
			ID:                types.ModuleTutor,
			Kind:              types.KindGenerative,
			PromptVersion:     "tutor.v5",
			Audience:          types.AudienceChild,
			Tier:              types.TierBalanced,
			MaxOutputTokens:   512,
			RequiredFields:    []string{"hint", "scaffoldLevel", "strategy", "mustNotRevealAnswer"},
			ForbiddenPatterns: compile(solutionVoice, pickVoice, parentVoice),
		},
		{
			ID:                types.ModuleProgressTracker,
			Kind:              types.KindGenerative,
			PromptVersion:     "progress_tracker.v2",
			Audience:          types.AudienceParent,
			Tier:              types.TierBalanced,
			MaxOutputTokens:   1024,
			RequiredFields:    []string{"summary", "milestones", "skillsImproved", "skillsNeedingPractice"},
			ForbiddenPatterns: compile(solutionVoice, hintVoice, itemVoice),
		},
		{
			ID:                types.ModuleParentReporter,
			Kind:              types.KindGenerative,
			PromptVersion:     "parent_reporter.v4",
			Audience:          types.AudienceParent,
			Tier:              types.TierDeep,
			MaxOutputTokens:   1536,
			RequiredFields:    []string{"headline", "narrative", "strengths", "nextSteps"},
			ForbiddenPatterns: compile(solutionVoice, hintVoice, itemVoice, directiveVoice),
		},
		{
			ID:                types.ModuleCohortAnalyst,
			Kind:              types.KindGenerative,
			PromptVersion:     "cohort_analyst.v2",
			Audience:          types.AudienceSystem,
			Tier:              types.TierDeep,
			MaxOutputTokens:   1536,
			RequiredFields:    []string{"insights", "focusSkillIds", "atRiskCount"},
			ForbiddenPatterns: compile(parentVoice, hintVoice, praiseVoice),
		},
		{
			ID:              types.ModuleCoordinationExtractor,
			Kind:            types.KindGenerative,
			PromptVersion:   "coordination_extractor.v3",
			Audience:        types.AudienceSystem,
			Tier:            types.TierBalanced,
			MaxOutputTokens: 1024,
			RequiredFields: []string{
				"schemaVersion",
				"scope.subjectId", "scope.validFrom", "scope.validUntil",
				"signals.trend", "signals.plateauFlag", "signals.calibrationStatus", "signals.fatigueRisk",
				"recommendedAdjustments.supportLevel",
				"recommendedAdjustments.difficultyDelta",
				"recommendedAdjustments.sessionMix.reinforce",
				"recommendedAdjustments.sessionMix.target",
				"recommendedAdjustments.sessionMix.stretch",
				"recommendedAdjustments.focusSkillIds",
				"constraints.lockedLevel", "constraints.mustNot",
				"decisionRationale",
			},
			ForbiddenPatterns: compile(itemVoice, hintVoice, praiseVoice, parentVoice),
		},
		{
			ID:             types.ModuleOrchestrator,
			Kind:           types.KindDeterministic,
			PromptVersion:  "rules.v1",
			Audience:       types.AudienceSystem,
			RequiredFields: []string{"questionIds", "targetDifficulty", "sessionMix", "inventorySufficient"},
		},
		{
			ID:             types.ModuleSafetyGate,
			Kind:           types.KindDeterministic,
			PromptVersion:  "rules.v1",
			Audience:       types.AudienceSystem,
			RequiredFields: []string{"decision", "reasons"},
		},
		{
			ID:             types.ModuleAuditGate,
			Kind:           types.KindDeterministic,
			PromptVersion:  "rules.v1",
			Audience:       types.AudienceSystem,
			RequiredFields: []string{"schemaCompliance", "rolePurity", "driftDetected", "violations"},
		},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
