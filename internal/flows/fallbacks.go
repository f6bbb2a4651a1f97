package flows

import (
	"fmt"
	"math"
	"sort"

	"scholarforge/internal/safety"
	"scholarforge/internal/schema"
)

// Pre-approved fallback copy. All of it passes the safety gate for its audience.
var staticHints = [schema.MaxScaffoldLevel + 1]string{
	1: "Read the question again slowly. What is it asking you to find?",
	2: "Try breaking the problem into smaller steps and do one step at a time.",
	3: "Think about a similar problem you have solved before. Could the same idea work here?",
	4: "Look at each choice in turn and check it against the question. Which ones can you rule out?",
}

var staticStrategies = [schema.MaxScaffoldLevel + 1]string{
	1: schema.StrategyRefocus,
	2: schema.StrategyDecompose,
	3: schema.StrategyExample,
	4: schema.StrategyNarrow,
}

const (
	feedbackCorrect   = "You got it. Keep going!"
	feedbackIncorrect = "Thanks for trying. Let's look at this one together."
	feedbackReceived  = "Thanks for your answer. Your teacher will take a look."

	calibrationNote = "Confidence reading based on the answer and self-rating."

	progressSummary  = "Practice continued this period."
	parentHeadline   = "%s's learning update"
	parentNarrative  = "%s practised for %d minutes this period."
	genericHeadline  = "Learning update for this period"
	genericNarrative = "Practice continued for %d minutes this period."
	parentNextStep   = "Keep a short, regular practice routine at home."
)

// staticHint returns the pre-approved hint for a scaffold level. If that hint
// happens to contain the reference answer, the nearest level whose hint does
// not is used instead.
func staticHint(level int, reference string) (hint, strategy string) {
	level = clampScaffold(level)
	for step := 0; step <= schema.MaxScaffoldLevel; step++ {
		for _, l := range []int{level - step, level + step} {
			if l < schema.MinScaffoldLevel || l > schema.MaxScaffoldLevel {
				continue
			}
			if !safety.Reveals(staticHints[l], reference) {
				return staticHints[l], staticStrategies[l]
			}
		}
	}
	return staticHints[level], staticStrategies[level]
}

// fallbackEvaluation scores a multiple-choice response by index. Free-text
// responses cannot be judged without the evaluator and score zero.
func fallbackEvaluation(in schema.ResponseEvaluatorInput) schema.ResponseEvaluatorOutput {
	if !in.MultipleChoice() {
		return schema.ResponseEvaluatorOutput{Feedback: feedbackReceived, ErrorPattern: schema.ErrorPatternUnknown}
	}
	if in.SelectedIndex == in.CorrectIndex {
		return schema.ResponseEvaluatorOutput{IsCorrect: true, Score: 1, Feedback: feedbackCorrect, ErrorPattern: schema.ErrorPatternNone}
	}
	return schema.ResponseEvaluatorOutput{Feedback: feedbackIncorrect, ErrorPattern: schema.ErrorPatternUnknown}
}

// fallbackCalibration applies the calibration rules the interpreter's
// contract enforces.
func fallbackCalibration(in schema.ConfidenceInterpreterInput) schema.ConfidenceInterpreterOutput {
	status := schema.CalibrationCalibrated
	switch {
	case in.SelfReportedConfidence == 0:
		status = schema.CalibrationUnknown
	case !in.IsCorrect && in.SelfReportedConfidence >= 4:
		status = schema.CalibrationOverconfident
	case in.IsCorrect && in.SelfReportedConfidence <= 2:
		status = schema.CalibrationUnderconfident
	}
	return schema.ConfidenceInterpreterOutput{CalibrationStatus: status, Confidence: 0.5, Interpretation: calibrationNote}
}

// fallbackMastery blends the prior with observed accuracy, weighting the
// evidence by how much of it there is.
func fallbackMastery(in schema.MasteryEstimatorInput) schema.MasteryEstimatorOutput {
	n := len(in.Attempts)
	mastery := clampUnit(in.PriorMastery)
	if n > 0 {
		correct := 0
		for _, a := range in.Attempts {
			if a.Correct {
				correct++
			}
		}
		weight := math.Min(1, float64(n)/10)
		mastery = clampUnit((1-weight)*mastery + weight*float64(correct)/float64(n))
	}
	return schema.MasteryEstimatorOutput{
		Mastery:       mastery,
		Confidence:    math.Min(1, float64(n)/10),
		EvidenceCount: n,
		Level:         schema.MasteryLevelFor(mastery),
	}
}

// Trend thresholds for the rules-based trend reading.
const (
	minTrendScores  = 3
	plateauScores   = 5
	trendBand       = 0.05
	fatigueDropHigh = 0.2
)

// fallbackTrend compares the mean of the later half of the series with the
// earlier half.
func fallbackTrend(in schema.TrendMonitorInput) schema.TrendMonitorOutput {
	out := schema.TrendMonitorOutput{Trend: schema.TrendInsufficientData, FatigueRisk: schema.FatigueLow, Observations: []string{}}
	n := len(in.Scores)
	if n < minTrendScores {
		out.Observations = append(out.Observations, fmt.Sprintf("%d score(s) recorded; at least %d are needed.", n, minTrendScores))
		return out
	}
	early, late := mean(in.Scores[:n/2]), mean(in.Scores[n/2:])
	switch diff := late - early; {
	case diff > trendBand:
		out.Trend = schema.TrendImproving
	case diff < -trendBand:
		out.Trend = schema.TrendDeclining
	default:
		out.Trend = schema.TrendStable
		out.PlateauFlag = n >= plateauScores
	}
	if drop := in.Scores[n-2] - in.Scores[n-1]; drop >= fatigueDropHigh {
		out.FatigueRisk = schema.FatigueHigh
	} else if drop > trendBand {
		out.FatigueRisk = schema.FatigueMedium
	}
	out.Observations = append(out.Observations, fmt.Sprintf("Mean accuracy moved from %.2f to %.2f.", early, late))
	return out
}

// fallbackCohort focuses on the lowest-mastery skills.
func fallbackCohort(in schema.CohortAnalystInput) schema.CohortAnalystOutput {
	stats := append([]schema.CohortSkillStat(nil), in.Skills...)
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].MeanMastery < stats[j].MeanMastery })
	out := schema.CohortAnalystOutput{Insights: []schema.CohortInsight{}, FocusSkillIDs: []string{}}
	atRisk := 0
	for i, st := range stats {
		if st.AtRisk > atRisk {
			atRisk = st.AtRisk
		}
		if i < 3 {
			out.FocusSkillIDs = append(out.FocusSkillIDs, st.SkillID)
			out.Insights = append(out.Insights, schema.CohortInsight{
				SkillID:     st.SkillID,
				Observation: fmt.Sprintf("Mean mastery %.2f across %d learner(s).", st.MeanMastery, st.Learners),
			})
		}
	}
	out.AtRiskCount = min(atRisk, in.TotalLearners())
	return out
}

// fallbackProgress splits skills by movement. A skill counts as improved when
// mastery rose, and as needing practice when it did not and sits below 0.6.
func fallbackProgress(in schema.ProgressTrackerInput) schema.ProgressTrackerOutput {
	out := schema.ProgressTrackerOutput{
		Summary:               progressSummary,
		Milestones:            []string{},
		SkillsImproved:        []string{},
		SkillsNeedingPractice: []string{},
	}
	for _, sk := range in.Skills {
		switch {
		case sk.Mastery > sk.PriorMastery:
			out.SkillsImproved = append(out.SkillsImproved, sk.SkillID)
		case sk.Mastery < 0.6:
			out.SkillsNeedingPractice = append(out.SkillsNeedingPractice, sk.SkillID)
		}
	}
	return out
}

func fallbackParentReport(in schema.ParentReporterInput) schema.ParentReporterOutput {
	out := schema.ParentReporterOutput{
		Headline:  genericHeadline,
		Narrative: fmt.Sprintf(genericNarrative, in.MinutesPracticed),
		Strengths: []string{},
		NextSteps: []string{parentNextStep},
	}
	if in.FirstName != "" {
		out.Headline = fmt.Sprintf(parentHeadline, in.FirstName)
		out.Narrative = fmt.Sprintf(parentNarrative, in.FirstName, in.MinutesPracticed)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
