package contract

import (
	"strings"

	"scholarforge/internal/schema"
)

// Item and response validators for child-facing modules.

const (
	optionsPerItem = 4
	maxHintRunes   = 400
)

// validateItemBatch checks the batch envelope only. Items are validated one at a
// time through ValidateItem so a single malformed item does not sink the batch.
func validateItemBatch(out schema.ItemGeneratorOutput, in schema.ItemGeneratorInput) []string {
	var p problems
	limit := in.Count
	if limit < 1 {
		limit = 1
	}
	switch n := len(out.Items); {
	case n == 0:
		p.addf("items must contain at least one item")
	case n > limit:
		p.addf("items has %d entries, requested at most %d", n, limit)
	}
	return p
}

func itemProblems(in schema.ItemGeneratorInput, item schema.GeneratedItem) []string {
	var p problems
	p.nonEmpty("stem", item.Stem)
	p.nonEmpty("explanation", item.Explanation)

	if len(item.Options) != optionsPerItem {
		p.addf("options must have exactly %d entries, got %d", optionsPerItem, len(item.Options))
	}
	seen := make(map[string]int, len(item.Options))
	for i, opt := range item.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			p.addf("options[%d] must not be empty", i)
			continue
		}
		if j, dup := seen[key]; dup {
			p.addf("options[%d] duplicates options[%d]", i, j)
			continue
		}
		seen[key] = i
	}
	p.require(item.CorrectIndex >= 0 && item.CorrectIndex < optionsPerItem,
		"correctIndex must be within [0,%d], got %d", optionsPerItem-1, item.CorrectIndex)
	p.require(item.Difficulty == in.Difficulty,
		"difficulty %d does not match requested difficulty %d", item.Difficulty, in.Difficulty)
	p.require(item.Difficulty >= schema.MinDifficulty && item.Difficulty <= schema.MaxDifficulty,
		"difficulty must be within [%d,%d]", schema.MinDifficulty, schema.MaxDifficulty)
	p.require(item.SkillID == in.SkillID,
		"skillId %q does not match requested skill %q", item.SkillID, in.SkillID)
	return p
}

func validateEvaluation(out schema.ResponseEvaluatorOutput, in schema.ResponseEvaluatorInput) []string {
	var p problems
	p.unit("score", out.Score)
	p.nonEmpty("feedback", out.Feedback)
	p.oneOf("errorPattern", out.ErrorPattern,
		schema.ErrorPatternNone, schema.ErrorPatternConceptual, schema.ErrorPatternProcedural,
		schema.ErrorPatternCareless, schema.ErrorPatternUnknown)

	if in.MultipleChoice() {
		want := in.SelectedIndex == in.CorrectIndex
		p.require(out.IsCorrect == want,
			"isCorrect=%t contradicts selectedIndex %d vs correctIndex %d", out.IsCorrect, in.SelectedIndex, in.CorrectIndex)
	}
	if out.IsCorrect {
		p.require(out.ErrorPattern == schema.ErrorPatternNone,
			"a correct response must have errorPattern %q", schema.ErrorPatternNone)
	}
	return p
}

func validateConfidence(out schema.ConfidenceInterpreterOutput, in schema.ConfidenceInterpreterInput) []string {
	var p problems
	p.oneOf("calibrationStatus", out.CalibrationStatus,
		schema.CalibrationCalibrated, schema.CalibrationOverconfident,
		schema.CalibrationUnderconfident, schema.CalibrationUnknown)
	p.unit("confidence", out.Confidence)
	p.nonEmpty("interpretation", out.Interpretation)

	switch {
	case !in.IsCorrect && in.SelfReportedConfidence >= 4:
		p.require(out.CalibrationStatus == schema.CalibrationOverconfident,
			"incorrect answer with self-rating %d must be %q", in.SelfReportedConfidence, schema.CalibrationOverconfident)
	case in.IsCorrect && in.SelfReportedConfidence > 0 && in.SelfReportedConfidence <= 2:
		p.require(out.CalibrationStatus == schema.CalibrationUnderconfident,
			"correct answer with self-rating %d must be %q", in.SelfReportedConfidence, schema.CalibrationUnderconfident)
	}
	return p
}

func validateHint(out schema.TutorOutput, in schema.TutorInput) []string {
	var p problems
	p.nonEmpty("hint", out.Hint)
	p.maxRunes("hint", out.Hint, maxHintRunes)
	p.require(out.ScaffoldLevel == in.ScaffoldLevel,
		"scaffoldLevel %d does not echo requested level %d", out.ScaffoldLevel, in.ScaffoldLevel)
	p.require(out.ScaffoldLevel >= schema.MinScaffoldLevel && out.ScaffoldLevel <= schema.MaxScaffoldLevel,
		"scaffoldLevel must be within [%d,%d]", schema.MinScaffoldLevel, schema.MaxScaffoldLevel)
	p.oneOf("strategy", out.Strategy,
		schema.StrategyRefocus, schema.StrategyDecompose, schema.StrategyExample, schema.StrategyNarrow)
	p.require(out.MustNotRevealAnswer, "mustNotRevealAnswer must be true")
	return p
}
