package flows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

func cohortInput() schema.CohortAnalystInput {
	return schema.CohortAnalystInput{
		CohortID: "c1",
		Skills: []schema.CohortSkillStat{
			{SkillID: "add", Learners: 20, MeanMastery: 0.72, AtRisk: 2},
			{SkillID: "sub", Learners: 18, MeanMastery: 0.41, AtRisk: 6},
			{SkillID: "mul", Learners: 15, MeanMastery: 0.55, AtRisk: 4},
			{SkillID: "div", Learners: 12, MeanMastery: 0.38, AtRisk: 9},
		},
	}
}

func progressInput() schema.ProgressTrackerInput {
	return schema.ProgressTrackerInput{
		SubjectID: "s1", Period: "2026-09", Sessions: 5,
		Skills: []schema.SkillSnapshot{
			{SkillID: "add", SkillName: "Addition", Mastery: 0.8, PriorMastery: 0.6},
			{SkillID: "sub", SkillName: "Subtraction", Mastery: 0.45, PriorMastery: 0.5},
			{SkillID: "mul", SkillName: "Multiplication", Mastery: 0.7, PriorMastery: 0.7},
		},
	}
}

func TestCohortInsights(t *testing.T) {
	t.Run("model analysis", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleCohortAnalyst,
			`{"insights": [{"skillId": "div", "observation": "Lowest mean mastery in the cohort."}], "focusSkillIds": ["div", "sub"], "atRiskCount": 9}`))
		out, err := h.svc.CohortInsights(context.Background(), cohortInput())
		require.NoError(t, err)
		assert.False(t, out.Fallback)
		assert.Equal(t, []string{"div", "sub"}, out.Analysis.FocusSkillIDs)
	})

	t.Run("unknown focus skill falls back", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleCohortAnalyst,
			`{"insights": [], "focusSkillIds": ["fractions"], "atRiskCount": 1}`))
		out, err := h.svc.CohortInsights(context.Background(), cohortInput())
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.Equal(t, []string{"div", "sub", "mul"}, out.Analysis.FocusSkillIDs)
		assert.Equal(t, 9, out.Analysis.AtRiskCount)
	})
}

func TestProgressSummary(t *testing.T) {
	t.Run("model summary", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleProgressTracker,
			`{"summary": "Steady practice across five sessions.", "milestones": ["Finished the first addition set."], "skillsImproved": ["add"], "skillsNeedingPractice": ["sub"]}`))
		out, err := h.svc.ProgressSummary(context.Background(), progressInput())
		require.NoError(t, err)
		assert.False(t, out.Fallback)
		assert.Equal(t, []string{"Finished the first addition set."}, out.Progress.Milestones)
	})

	t.Run("overlapping lists fall back", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleProgressTracker,
			`{"summary": "Mixed month.", "milestones": [], "skillsImproved": ["add"], "skillsNeedingPractice": ["add"]}`))
		out, err := h.svc.ProgressSummary(context.Background(), progressInput())
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.Equal(t, []string{"add"}, out.Progress.SkillsImproved)
		assert.Equal(t, []string{"sub"}, out.Progress.SkillsNeedingPractice)
	})
}

func TestParentReport(t *testing.T) {
	in := schema.ParentReporterInput{
		FirstName: "Ava", Period: "September", MinutesPracticed: 90,
		Highlights: []string{"Finished the first addition set."},
		Skills:     progressInput().Skills,
	}

	t.Run("model report", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleParentReporter,
			`{"headline": "Ava had a steady month", "narrative": "Ava practised for 90 minutes and grew more confident with addition.", "strengths": ["Addition"], "nextSteps": ["Try a few subtraction puzzles together."]}`))
		out, err := h.svc.ParentReport(context.Background(), in)
		require.NoError(t, err)
		assert.False(t, out.Fallback)
		assert.Equal(t, "Ava had a steady month", out.Report.Headline)
	})

	t.Run("ranking language falls back", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleParentReporter,
			`{"headline": "Ava is above average", "narrative": "Ava is working above grade level.", "strengths": [], "nextSteps": ["Keep going."]}`))
		out, err := h.svc.ParentReport(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.Equal(t, "Ava's learning update", out.Report.Headline)
		assert.Contains(t, out.Report.Narrative, "90 minutes")

		runs := h.runs()
		require.Len(t, runs, 1)
		assert.Equal(t, types.DecisionBlock, runs[0].SafetyDecision)
	})

	t.Run("escaped clinical language falls back", func(t *testing.T) {
		h := newHarness(t, newInvoker().script(types.ModuleParentReporter,
			`{"headline": "Ava's month", "narrative": "Ava may have a learning\ndisab\u0069lity.", "strengths": [], "nextSteps": ["Keep going."]}`))
		out, err := h.svc.ParentReport(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.NotContains(t, out.Report.Narrative, "disability")
		assert.Contains(t, joinRuleCodes(h.runs()[0].SafetyReasons), types.CodeBannedClinical)
	})

	t.Run("fallback without a first name", func(t *testing.T) {
		h := newHarness(t, newInvoker().failing(types.ModuleParentReporter))
		anon := in
		anon.FirstName = ""
		out, err := h.svc.ParentReport(context.Background(), anon)
		require.NoError(t, err)
		assert.True(t, out.Fallback)
		assert.Equal(t, genericHeadline, out.Report.Headline)
	})
}

func joinRuleCodes(results []types.RuleResult) []string {
	codes := make([]string, 0, len(results))
	for _, r := range results {
		codes = append(codes, r.Code)
	}
	return codes
}
