package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

func coordinationInput() schema.CoordinationExtractorInput {
	return schema.CoordinationExtractorInput{
		SubjectID:  "scholar-42",
		Level:      5,
		SkillIDs:   []string{"fractions", "decimals"},
		ValidFrom:  "2026-10-01",
		ValidUntil: "2026-10-08",
		Diagnostics: schema.PriorDiagnostics{
			Trend:             schema.TrendStable,
			PlateauFlag:       true,
			CalibrationStatus: schema.CalibrationCalibrated,
			FatigueRisk:       schema.FatigueLow,
		},
	}
}

func coordinationOutput() schema.CoordinationObject {
	return schema.CoordinationObject{
		SchemaVersion: schema.CoordinationSchemaVersion,
		Scope:         schema.CoordinationScope{SubjectID: "scholar-42", ValidFrom: "2026-10-01", ValidUntil: "2026-10-08"},
		Signals: schema.CoordinationSignals{
			Trend: schema.TrendStable, PlateauFlag: true,
			CalibrationStatus: schema.CalibrationCalibrated, FatigueRisk: schema.FatigueLow,
		},
		RecommendedAdjustments: schema.RecommendedAdjustments{
			SupportLevel:    schema.SupportIncrease,
			DifficultyDelta: -0.5,
			SessionMix:      schema.SessionMix{Reinforce: 0.5, Target: 0.4, Stretch: 0.1},
			FocusSkillIDs:   []string{"fractions"},
		},
		Constraints:       schema.CoordinationConstraints{LockedLevel: 5, MustNot: []string{schema.LevelLockToken}},
		DecisionRationale: []string{"plateau over the last three sessions"},
	}
}

func TestValidate_CoordinationHappyPath(t *testing.T) {
	r := newRegistry(t)
	v := r.Validate(types.ModuleCoordinationExtractor, coordinationOutput(), coordinationInput())
	assert.True(t, v.Pass, v.Reasons)
}

func TestValidate_CoordinationInvariants(t *testing.T) {
	r := newRegistry(t)
	tests := []struct {
		name   string
		mutate func(*schema.CoordinationObject)
	}{
		{"level not locked to input", func(o *schema.CoordinationObject) { o.Constraints.LockedLevel = 6 }},
		{"missing lock token", func(o *schema.CoordinationObject) { o.Constraints.MustNot = []string{"skip_review"} }},
		{"mix over tolerance", func(o *schema.CoordinationObject) { o.RecommendedAdjustments.SessionMix.Stretch = 0.2 }},
		{"plateau without increase", func(o *schema.CoordinationObject) { o.RecommendedAdjustments.SupportLevel = schema.SupportMaintain }},
		{"plateau not echoed", func(o *schema.CoordinationObject) { o.Signals.PlateauFlag = false }},
		{"foreign focus skill", func(o *schema.CoordinationObject) { o.RecommendedAdjustments.FocusSkillIDs = []string{"algebra"} }},
		{"no rationale", func(o *schema.CoordinationObject) { o.DecisionRationale = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := coordinationOutput()
			tt.mutate(&out)
			assert.False(t, r.Validate(types.ModuleCoordinationExtractor, out, coordinationInput()).Pass)
		})
	}
}

func TestNormalize_ClampsDifficultyDelta(t *testing.T) {
	r := newRegistry(t)
	out := coordinationOutput()
	out.RecommendedAdjustments.DifficultyDelta = -3

	assert.False(t, r.Validate(types.ModuleCoordinationExtractor, out, coordinationInput()).Pass)

	normalized := r.Normalize(types.ModuleCoordinationExtractor, out, coordinationInput())
	obj, ok := normalized.(schema.CoordinationObject)
	require.True(t, ok)
	assert.Equal(t, -1.0, obj.RecommendedAdjustments.DifficultyDelta)
	assert.True(t, r.Validate(types.ModuleCoordinationExtractor, obj, coordinationInput()).Pass)
}

func TestNormalize_NoHookIsIdentity(t *testing.T) {
	r := newRegistry(t)
	out := schema.TutorOutput{Hint: "x"}
	assert.Equal(t, out, r.Normalize(types.ModuleTutor, out, schema.TutorInput{}))
}

func TestValidate_SessionPlanShortfall(t *testing.T) {
	r := newRegistry(t)
	in := schema.OrchestratorInput{Level: 3, QuestionCount: 4, ExcludeIDs: []string{"q9"}}
	plan := schema.SessionPlan{
		Level: 3, QuestionIDs: []string{"q1", "q2", "q3"}, TargetDifficulty: 3,
		SessionMix: schema.SessionMix{Reinforce: 0.3, Target: 0.5, Stretch: 0.2},
		Requested:  4, Shortfall: 1, InventorySufficient: false,
	}
	assert.True(t, r.Validate(types.ModuleOrchestrator, plan, in).Pass)

	plan.InventorySufficient = true
	assert.False(t, r.Validate(types.ModuleOrchestrator, plan, in).Pass)

	plan.InventorySufficient = false
	plan.QuestionIDs = []string{"q1", "q1", "q9"}
	assert.False(t, r.Validate(types.ModuleOrchestrator, plan, in).Pass)
}
