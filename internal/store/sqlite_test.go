package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/schema"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "test.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func draft(id, skill string, difficulty int) Draft {
	return Draft{
		Item: Item{
			ID: id, SkillID: skill, Domain: "number", Level: 2, Difficulty: difficulty,
			Stem: "What is 3 + 4?", Options: []string{"6", "7", "8", "9"}, Explanation: "3 and 4 make 7.",
		},
		Answer: PrivateAnswer{CorrectIndex: 1, CorrectOption: "7"},
	}
}

func TestOpen_MigratesToCurrentVersion(t *testing.T) {
	s := openTestStore(t)
	v, err := schemaVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)

	// Re-running is a no-op.
	require.NoError(t, runMigrations(context.Background(), s.db))
}

func TestWriteApprovedDraftsAndFetch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ids, err := s.WriteApprovedDrafts(ctx, []Draft{draft("a", "add", 2), draft("b", "add", 2), draft("", "add", 3)})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[2])

	n, err := s.CountServable(ctx, "add", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := s.FetchServable(ctx, Filter{SkillIDs: []string{"add"}, Difficulty: 2, ExcludeIDs: []string{"a"}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, StatusAgentApproved, items[0].Status)
	assert.Empty(t, cmp.Diff([]string{"6", "7", "8", "9"}, items[0].Options))

	byDomain, err := s.FetchServable(ctx, Filter{Domain: "number", Level: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, byDomain, 2)

	ans, err := s.GetPrivateAnswer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "7", ans.CorrectOption)
}

func TestWriteDrafts_IsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.WriteApprovedDrafts(ctx, []Draft{draft("dup", "add", 2), draft("dup", "add", 2)})
	require.Error(t, err)

	n, err := s.CountServable(ctx, "add", 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.GetPrivateAnswer(ctx, "dup")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDraftsAreNotServableUntilApproved(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.WriteDrafts(ctx, []Draft{draft("x", "add", 1), draft("y", "add", 1)}, StatusDraft)
	require.NoError(t, err)
	n, err := s.CountServable(ctx, "add", 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	updated, err := s.MarkApproved(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	n, err = s.CountServable(ctx, "add", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Publish(ctx, []string{"x", "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	item, err := s.GetItem(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, StatusAgentApproved, item.Status, "failed batch leaves statuses untouched")
}

func TestSkills(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertSkill(ctx, Skill{ID: "sub", Name: "Subtraction", Domain: "number", Level: 2}))
	require.NoError(t, s.UpsertSkill(ctx, Skill{ID: "add", Name: "Addition", Domain: "number", Level: 1}))
	require.NoError(t, s.UpsertSkill(ctx, Skill{ID: "add", Name: "Addition within 20", Domain: "number", Level: 1}))
	assert.Error(t, s.UpsertSkill(ctx, Skill{}))

	skills, err := s.LoadSkills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "Addition within 20", skills[0].Name)
}

func TestCoordinationPlansAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LatestCoordination(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	first := schema.CoordinationObject{SchemaVersion: "v1", Constraints: schema.CoordinationConstraints{LockedLevel: 3}}
	second := first
	second.Constraints.LockedLevel = 4
	require.NoError(t, s.SaveCoordination(ctx, "run-1", "s1", first))
	require.NoError(t, s.SaveCoordination(ctx, "run-2", "s1", second))
	rec, err := s.LatestCoordination(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", rec.RunID)
	assert.Equal(t, 4, rec.Object.Constraints.LockedLevel)

	plan := schema.SessionPlan{SubjectID: "s1", Level: 4, QuestionIDs: []string{"a", "b"}, Requested: 2, InventorySufficient: true}
	id, err := s.SaveSessionPlan(ctx, plan)
	require.NoError(t, err)
	got, err := s.GetSessionPlan(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(plan, got))

	diag := schema.PriorDiagnostics{Trend: schema.TrendStable, PlateauFlag: true, FatigueRisk: schema.FatigueLow}
	require.NoError(t, s.SaveDiagnostics(ctx, "s1", diag))
	diag.PlateauFlag = false
	require.NoError(t, s.SaveDiagnostics(ctx, "s1", diag))
	d, err := s.LatestDiagnostics(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, d.Diagnostics.PlateauFlag)
}

func TestRunJournal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.RecordRun(ctx, RunRecord{RunID: "r1", Module: "tutor", PromptVersion: "tutor.v5", SafetyDecision: "ALLOW", Success: true}))
	require.NoError(t, s.RecordRun(ctx, RunRecord{RunID: "r2", Module: "tutor", PromptVersion: "tutor.v5", SafetyDecision: "PARSE_ERROR", ValidationErrors: []string{"parse: empty"}}))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)
	assert.Equal(t, []string{"parse: empty"}, runs[0].ValidationErrors)
	assert.True(t, runs[1].Success)
}
