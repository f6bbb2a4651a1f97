package flows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

const (
	masteryJSON       = `{"mastery": 0.7, "confidence": 0.6, "evidenceCount": 4, "level": "proficient"}`
	trendJSON         = `{"trend": "improving", "plateauFlag": false, "fatigueRisk": "low", "observations": ["Accuracy rose across sessions."]}`
	misconceptionJSON = `{"misconceptions": [{"code": "carry_skip", "description": "Drops the carried ten when adding.", "evidence": 2}], "primaryMisconception": "carry_skip"}`
)

func diagnoseRequest() DiagnoseRequest {
	return DiagnoseRequest{
		SubjectID:    "s1",
		SkillID:      "add",
		PriorMastery: 0.5,
		Attempts: []schema.AttemptSummary{
			{Correct: true, Difficulty: 2}, {Correct: false, Difficulty: 3},
			{Correct: true, Difficulty: 3}, {Correct: false, Difficulty: 3},
		},
		Scores: []float64{0.5, 0.6, 0.7},
	}
}

func TestDiagnose_RunsModulesConcurrently(t *testing.T) {
	inv := newInvoker().
		script(types.ModuleMasteryEstimator, masteryJSON).
		script(types.ModuleTrendMonitor, trendJSON).
		script(types.ModuleMisconceptionDiagnoser, misconceptionJSON)

	// Mastery and trend each wait for the other to start; run serially they
	// would both time out and fall back.
	var arrived atomic.Int32
	both := make(chan struct{})
	inv.before = func(ctx context.Context, id types.ModuleID) error {
		if id != types.ModuleMasteryEstimator && id != types.ModuleTrendMonitor {
			return nil
		}
		if arrived.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer module never started")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := newHarness(t, inv)

	req := diagnoseRequest()
	req.Errors = []schema.ErrorSample{{Stem: "What is 18 + 5?", SelectedOption: "13", CorrectOption: "23"}}
	out, err := h.svc.Diagnose(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, out.Fallbacks)
	assert.Equal(t, 0.7, out.Mastery.Mastery)
	assert.Equal(t, schema.TrendImproving, out.Trend.Trend)
	require.NotNil(t, out.Misconceptions)
	assert.Equal(t, "carry_skip", out.Misconceptions.PrimaryMisconception)
	assert.Len(t, h.runs(), 3)
}

func TestDiagnose_MergesIntoStoredDiagnostics(t *testing.T) {
	inv := newInvoker().script(types.ModuleMasteryEstimator, masteryJSON).script(types.ModuleTrendMonitor, trendJSON)
	h := newHarness(t, inv)
	h.store.diagnostics["s1"] = schema.PriorDiagnostics{
		Trend:             schema.TrendDeclining,
		CalibrationStatus: schema.CalibrationOverconfident,
		FatigueRisk:       schema.FatigueHigh,
		Skills:            []schema.SkillMastery{{SkillID: "sub", Mastery: 0.3}, {SkillID: "add", Mastery: 0.2}},
	}

	out, err := h.svc.Diagnose(context.Background(), diagnoseRequest())
	require.NoError(t, err)
	assert.Nil(t, out.Misconceptions)

	want := schema.PriorDiagnostics{
		Trend:             schema.TrendImproving,
		CalibrationStatus: schema.CalibrationOverconfident,
		FatigueRisk:       schema.FatigueLow,
		RecentAccuracy:    0.7,
		Skills:            []schema.SkillMastery{{SkillID: "sub", Mastery: 0.3}, {SkillID: "add", Mastery: 0.7}},
	}
	if diff := cmp.Diff(want, h.store.diagnostics["s1"]); diff != "" {
		t.Errorf("stored diagnostics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, out.Diagnostics)
}

func TestDiagnose_FallsBackPerModule(t *testing.T) {
	inv := newInvoker().
		failing(types.ModuleMasteryEstimator).
		// Two scores cannot support a trend; the contract rejects this.
		script(types.ModuleTrendMonitor, trendJSON)
	h := newHarness(t, inv)

	req := diagnoseRequest()
	req.Scores = []float64{0.4, 0.9}
	req.CalibrationStatus = schema.CalibrationCalibrated
	out, err := h.svc.Diagnose(context.Background(), req)
	require.NoError(t, err)

	assert.ElementsMatch(t, []types.ModuleID{types.ModuleMasteryEstimator, types.ModuleTrendMonitor}, out.Fallbacks)
	assert.InDelta(t, 0.5, out.Mastery.Mastery, 1e-9)
	assert.Equal(t, 4, out.Mastery.EvidenceCount)
	assert.Equal(t, schema.LevelDeveloping, out.Mastery.Level)
	assert.Equal(t, schema.TrendInsufficientData, out.Trend.Trend)

	stored := h.store.diagnostics["s1"]
	assert.Equal(t, schema.CalibrationCalibrated, stored.CalibrationStatus)
	assert.Equal(t, schema.TrendInsufficientData, stored.Trend)
}

func TestDiagnose_MisconceptionFailureYieldsEmptyList(t *testing.T) {
	inv := newInvoker().
		script(types.ModuleMasteryEstimator, masteryJSON).
		script(types.ModuleTrendMonitor, trendJSON).
		failing(types.ModuleMisconceptionDiagnoser)
	h := newHarness(t, inv)

	req := diagnoseRequest()
	req.Errors = []schema.ErrorSample{{Stem: "What is 18 + 5?", SelectedOption: "13", CorrectOption: "23"}}
	out, err := h.svc.Diagnose(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, out.Misconceptions)
	assert.Empty(t, out.Misconceptions.Misconceptions)
	assert.Equal(t, []types.ModuleID{types.ModuleMisconceptionDiagnoser}, out.Fallbacks)
}

func TestDiagnose_StoreFailure(t *testing.T) {
	h := newHarness(t, newInvoker().script(types.ModuleMasteryEstimator, masteryJSON).script(types.ModuleTrendMonitor, trendJSON))
	h.store.writeErr = errors.New("database is locked")

	_, err := h.svc.Diagnose(context.Background(), diagnoseRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
