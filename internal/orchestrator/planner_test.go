package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/catalog"
	"scholarforge/internal/contract"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

// memInventory is an in-memory servable inventory.
type memInventory struct {
	items   []store.Item
	fetches []store.Filter
	err     error
}

func (m *memInventory) add(skill string, difficulty, n int) {
	for i := 0; i < n; i++ {
		m.items = append(m.items, store.Item{
			ID:         fmt.Sprintf("%s-d%d-%d", skill, difficulty, i),
			SkillID:    skill,
			Domain:     "number",
			Level:      3,
			Difficulty: difficulty,
		})
	}
}

func (m *memInventory) CountServable(_ context.Context, skill string, difficulty int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, it := range m.items {
		if it.SkillID == skill && it.Difficulty == difficulty {
			n++
		}
	}
	return n, nil
}

func (m *memInventory) FetchServable(_ context.Context, f store.Filter) ([]store.Item, error) {
	m.fetches = append(m.fetches, f)
	if m.err != nil {
		return nil, m.err
	}
	skills := map[string]bool{}
	for _, s := range f.SkillIDs {
		skills[s] = true
	}
	excluded := map[string]bool{}
	for _, id := range f.ExcludeIDs {
		excluded[id] = true
	}
	var out []store.Item
	for _, it := range m.items {
		switch {
		case len(skills) > 0 && !skills[it.SkillID]:
		case f.Difficulty > 0 && it.Difficulty != f.Difficulty:
		case f.Domain != "" && it.Domain != f.Domain:
		case f.Level > 0 && it.Level != f.Level:
		case excluded[it.ID]:
		default:
			out = append(out, it)
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func planInput() schema.OrchestratorInput {
	return schema.OrchestratorInput{
		SubjectID:      "s1",
		Level:          3,
		Domain:         "number",
		SkillIDs:       []string{"add", "sub"},
		QuestionCount:  10,
		BaseDifficulty: 3,
	}
}

func stocked() *memInventory {
	inv := &memInventory{}
	for d := 1; d <= 5; d++ {
		inv.add("add", d, 10)
		inv.add("sub", d, 10)
	}
	return inv
}

func validatePlan(t *testing.T, plan schema.SessionPlan, in schema.OrchestratorInput) {
	t.Helper()
	cat := catalog.Default()
	v := contract.Default(cat).Validate(types.ModuleOrchestrator, plan, in)
	assert.True(t, v.Pass, "plan violates contract: %v", v.Reasons)
}

func TestPlan_DefaultMixFillsRequest(t *testing.T) {
	inv := stocked()
	in := planInput()

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)

	assert.Len(t, plan.QuestionIDs, 10)
	assert.True(t, plan.InventorySufficient)
	assert.Zero(t, plan.Shortfall)
	assert.Equal(t, 3.0, plan.TargetDifficulty)
	assert.Equal(t, DefaultMix, plan.SessionMix)
	assert.Equal(t, 3, plan.Level)
	validatePlan(t, plan, in)

	sizes := map[int]int{}
	for _, f := range inv.fetches {
		sizes[f.Difficulty] = f.Limit
	}
	assert.Empty(t, cmp.Diff(map[int]int{2: 3, 3: 5, 4: 2}, sizes))
}

func TestPlan_AppliesCoordination(t *testing.T) {
	inv := stocked()
	in := planInput()
	in.Coordination = &schema.CoordinationObject{
		RecommendedAdjustments: schema.RecommendedAdjustments{
			DifficultyDelta: 0.5,
			SessionMix:      schema.SessionMix{Reinforce: 0.2, Target: 0.5, Stretch: 0.3},
			FocusSkillIDs:   []string{"sub"},
		},
		Constraints: schema.CoordinationConstraints{LockedLevel: 3, MustNot: []string{schema.LevelLockToken}},
	}
	in.CoordinationRunID = "coord-1"

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	assert.Equal(t, 3.5, plan.TargetDifficulty)
	assert.Equal(t, "coord-1", plan.CoordinationRunID)
	assert.Len(t, plan.QuestionIDs, 10)
	for _, f := range inv.fetches {
		assert.Equal(t, []string{"sub"}, f.SkillIDs)
	}
	validatePlan(t, plan, in)
}

func TestPlan_IgnoresCoordinationForOtherLevel(t *testing.T) {
	inv := stocked()
	in := planInput()
	in.Coordination = &schema.CoordinationObject{
		RecommendedAdjustments: schema.RecommendedAdjustments{DifficultyDelta: -1, SessionMix: supportMix},
		Constraints:            schema.CoordinationConstraints{LockedLevel: 4, MustNot: []string{schema.LevelLockToken}},
	}
	in.CoordinationRunID = "coord-stale"

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Level)
	assert.Equal(t, 3.0, plan.TargetDifficulty)
	assert.Empty(t, plan.CoordinationRunID)
	assert.Equal(t, DefaultMix, plan.SessionMix)
}

func TestPlan_ReportsShortfall(t *testing.T) {
	inv := &memInventory{}
	inv.add("add", 3, 2)
	in := planInput()
	in.QuestionCount = 5

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	assert.False(t, plan.InventorySufficient)
	assert.Len(t, plan.QuestionIDs, 2)
	assert.Equal(t, 3, plan.Shortfall)
	validatePlan(t, plan, in)
}

func TestPlan_ExcludesAndNeverRepeats(t *testing.T) {
	inv := stocked()
	in := planInput()
	in.ExcludeIDs = []string{"add-d3-0", "add-d3-1"}

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, id := range plan.QuestionIDs {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
		assert.NotContains(t, in.ExcludeIDs, id)
	}
}

func TestPlan_ClampsDifficultyAtTheEdges(t *testing.T) {
	inv := stocked()
	in := planInput()
	in.BaseDifficulty = 5
	in.Coordination = &schema.CoordinationObject{
		RecommendedAdjustments: schema.RecommendedAdjustments{DifficultyDelta: 1, SessionMix: maintainMix},
		Constraints:            schema.CoordinationConstraints{LockedLevel: 3, MustNot: []string{schema.LevelLockToken}},
	}

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	assert.Equal(t, 5.0, plan.TargetDifficulty)
	for _, f := range inv.fetches {
		assert.LessOrEqual(t, f.Difficulty, schema.MaxDifficulty)
	}
}

func TestPlan_WidensWhenFocusStockIsThin(t *testing.T) {
	inv := &memInventory{}
	inv.add("sub", 3, 1)
	for d := 1; d <= 5; d++ {
		inv.add("add", d, 10)
	}
	in := planInput()
	in.Coordination = &schema.CoordinationObject{
		RecommendedAdjustments: schema.RecommendedAdjustments{SessionMix: maintainMix, FocusSkillIDs: []string{"sub"}},
		Constraints:            schema.CoordinationConstraints{LockedLevel: 3, MustNot: []string{schema.LevelLockToken}},
	}

	plan, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	assert.True(t, plan.InventorySufficient)
	assert.Contains(t, plan.QuestionIDs, "sub-d3-0")
}

func TestPlan_DomainFilterWithoutSkills(t *testing.T) {
	inv := stocked()
	in := planInput()
	in.SkillIDs = nil

	_, err := Plan(context.Background(), in, inv)
	require.NoError(t, err)
	for _, f := range inv.fetches {
		assert.Equal(t, "number", f.Domain)
		assert.Equal(t, 3, f.Level)
	}
}

func TestPlan_Errors(t *testing.T) {
	in := planInput()
	in.QuestionCount = 0
	_, err := Plan(context.Background(), in, stocked())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	boom := errors.New("db down")
	_, err = Plan(context.Background(), planInput(), &memInventory{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestSizeBuckets_RemainderGoesToTarget(t *testing.T) {
	got := sizeBuckets(7, DefaultMix, 3)
	sizes := []int{got[0].size, got[1].size, got[2].size}
	assert.Equal(t, []int{2, 4, 1}, sizes)
	assert.Equal(t, 7, sizes[0]+sizes[1]+sizes[2])

	edge := sizeBuckets(4, DefaultMix, 1)
	assert.Equal(t, 1, edge[0].difficulty)
	assert.Equal(t, 2, edge[2].difficulty)
}
