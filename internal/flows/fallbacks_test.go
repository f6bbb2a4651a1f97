package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scholarforge/internal/catalog"
	"scholarforge/internal/contract"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// Every fallback must satisfy the contract of the module it stands in for.
func TestFallbacksSatisfyContracts(t *testing.T) {
	contracts := contract.Default(catalog.Default())

	trendIn := schema.TrendMonitorInput{Scores: []float64{0.4, 0.5}}
	masteryIn := schema.MasteryEstimatorInput{PriorMastery: 0.9, Attempts: []schema.AttemptSummary{{Correct: false}}}
	evalIn := schema.ResponseEvaluatorInput{Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2, SelectedIndex: 2}
	freeIn := schema.ResponseEvaluatorInput{SelectedIndex: -1, ResponseText: "about twelve"}
	confIn := schema.ConfidenceInterpreterInput{IsCorrect: true, SelfReportedConfidence: 2}
	cohortIn := cohortInput()
	progressIn := progressInput()
	parentIn := schema.ParentReporterInput{FirstName: "Ava", MinutesPracticed: 30}

	cases := []struct {
		module types.ModuleID
		out    schema.Output
		in     schema.Input
	}{
		{types.ModuleTrendMonitor, fallbackTrend(trendIn), trendIn},
		{types.ModuleMasteryEstimator, fallbackMastery(masteryIn), masteryIn},
		{types.ModuleResponseEvaluator, fallbackEvaluation(evalIn), evalIn},
		{types.ModuleResponseEvaluator, fallbackEvaluation(freeIn), freeIn},
		{types.ModuleConfidenceInterpreter, fallbackCalibration(confIn), confIn},
		{types.ModuleCohortAnalyst, fallbackCohort(cohortIn), cohortIn},
		{types.ModuleProgressTracker, fallbackProgress(progressIn), progressIn},
		{types.ModuleParentReporter, fallbackParentReport(parentIn), parentIn},
	}
	for _, tc := range cases {
		v := contracts.Validate(tc.module, tc.out, tc.in)
		assert.True(t, v.Pass, "%s fallback: %v", tc.module, v.Reasons)
	}
}

func TestFallbackTrend(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		trend   string
		plateau bool
		fatigue string
	}{
		{"too few scores", []float64{0.5, 0.6}, schema.TrendInsufficientData, false, schema.FatigueLow},
		{"rising", []float64{0.4, 0.5, 0.6, 0.7}, schema.TrendImproving, false, schema.FatigueLow},
		{"falling", []float64{0.8, 0.7, 0.5, 0.4}, schema.TrendDeclining, false, schema.FatigueMedium},
		{"flat long run", []float64{0.6, 0.6, 0.6, 0.6, 0.6}, schema.TrendStable, true, schema.FatigueLow},
		{"flat short run", []float64{0.6, 0.62, 0.6, 0.61}, schema.TrendStable, false, schema.FatigueLow},
		{"late collapse", []float64{0.7, 0.7, 0.9, 0.9, 0.65}, schema.TrendImproving, false, schema.FatigueHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fallbackTrend(schema.TrendMonitorInput{Scores: tt.scores})
			assert.Equal(t, tt.trend, got.Trend)
			assert.Equal(t, tt.plateau, got.PlateauFlag)
			assert.Equal(t, tt.fatigue, got.FatigueRisk)
			assert.NotEmpty(t, got.Observations)
		})
	}
}

func TestFallbackCalibration(t *testing.T) {
	tests := []struct {
		correct    bool
		confidence int
		want       string
	}{
		{false, 5, schema.CalibrationOverconfident},
		{false, 4, schema.CalibrationOverconfident},
		{false, 2, schema.CalibrationCalibrated},
		{true, 1, schema.CalibrationUnderconfident},
		{true, 5, schema.CalibrationCalibrated},
		{true, 0, schema.CalibrationUnknown},
	}
	for _, tt := range tests {
		got := fallbackCalibration(schema.ConfidenceInterpreterInput{IsCorrect: tt.correct, SelfReportedConfidence: tt.confidence})
		assert.Equal(t, tt.want, got.CalibrationStatus, "correct=%t confidence=%d", tt.correct, tt.confidence)
	}
}

func TestFallbackMastery_WeightsEvidence(t *testing.T) {
	none := fallbackMastery(schema.MasteryEstimatorInput{PriorMastery: 0.65})
	assert.Equal(t, 0.65, none.Mastery)
	assert.Zero(t, none.Confidence)
	assert.Equal(t, schema.LevelProficient, none.Level)

	attempts := make([]schema.AttemptSummary, 12)
	for i := range attempts {
		attempts[i].Correct = true
	}
	full := fallbackMastery(schema.MasteryEstimatorInput{PriorMastery: 0.1, Attempts: attempts})
	assert.Equal(t, 1.0, full.Mastery)
	assert.Equal(t, 1.0, full.Confidence)
	assert.Equal(t, schema.LevelMastered, full.Level)
}
