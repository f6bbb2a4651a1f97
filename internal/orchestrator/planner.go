// Package orchestrator is the deterministic session planner. It turns a
// coordination object (when one applies) plus live inventory into a concrete
// SessionPlan, and derives a rules-based coordination object when the
// extractor module cannot supply one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"scholarforge/internal/logging"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
)

// Inventory is the slice of the document store the planner reads.
type Inventory interface {
	CountServable(ctx context.Context, skillID string, difficulty int) (int, error)
	FetchServable(ctx context.Context, f store.Filter) ([]store.Item, error)
}

// DefaultMix is used when no usable coordination object is supplied.
var DefaultMix = schema.SessionMix{Reinforce: 0.3, Target: 0.5, Stretch: 0.2}

// DefaultBaseDifficulty applies when the request carries no base difficulty.
const DefaultBaseDifficulty = 3

// ErrInvalidRequest marks requests the planner refuses outright.
var ErrInvalidRequest = errors.New("invalid plan request")

// bucket is one band of the session mix.
type bucket struct {
	name       string
	difficulty int
	size       int
}

// Plan builds a session plan. The level is never altered; a coordination
// object locked to a different level is ignored. Shortfalls are reported on the
// plan rather than padded.
func Plan(ctx context.Context, in schema.OrchestratorInput, inv Inventory) (schema.SessionPlan, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Plan")
	defer timer.Stop()
	log := logging.Get(logging.CategoryOrchestrator)

	if in.QuestionCount <= 0 {
		return schema.SessionPlan{}, fmt.Errorf("%w: questionCount must be positive, got %d", ErrInvalidRequest, in.QuestionCount)
	}
	if in.Level <= 0 {
		return schema.SessionPlan{}, fmt.Errorf("%w: level must be positive, got %d", ErrInvalidRequest, in.Level)
	}

	coord := usableCoordination(in)
	mix, delta, focus := DefaultMix, 0.0, in.SkillIDs
	runID := ""
	if coord != nil {
		adj := coord.RecommendedAdjustments
		delta = schema.ClampDelta(adj.DifficultyDelta)
		if adj.SessionMix.Balanced() {
			mix = adj.SessionMix
		} else {
			log.Warn("Coordination mix sums to %.3f; using default mix", adj.SessionMix.Sum())
		}
		if len(adj.FocusSkillIDs) > 0 {
			focus = adj.FocusSkillIDs
		}
		runID = in.CoordinationRunID
	}

	base := in.BaseDifficulty
	if base == 0 {
		base = DefaultBaseDifficulty
	}
	target := clampFloat(float64(base)+delta, schema.MinDifficulty, schema.MaxDifficulty)
	buckets := sizeBuckets(in.QuestionCount, mix, int(math.Round(target)))

	chosen := make([]string, 0, in.QuestionCount)
	excluded := append([]string(nil), in.ExcludeIDs...)
	for _, b := range buckets {
		if b.size == 0 {
			continue
		}
		skills, err := skillsFor(ctx, inv, focus, in.SkillIDs, b)
		if err != nil {
			return schema.SessionPlan{}, err
		}
		items, err := inv.FetchServable(ctx, filterFor(in, skills, b.difficulty, excluded, b.size))
		if err != nil {
			return schema.SessionPlan{}, fmt.Errorf("fetch %s bucket: %w", b.name, err)
		}
		for _, item := range items {
			chosen = append(chosen, item.ID)
			excluded = append(excluded, item.ID)
		}
		if len(items) < b.size {
			log.Debug("Bucket %s short: %d of %d at difficulty %d", b.name, len(items), b.size, b.difficulty)
		}
	}

	plan := schema.SessionPlan{
		SubjectID:         in.SubjectID,
		Level:             in.Level,
		QuestionIDs:       chosen,
		TargetDifficulty:  target,
		SessionMix:        mix,
		Requested:         in.QuestionCount,
		Shortfall:         in.QuestionCount - len(chosen),
		CoordinationRunID: runID,
	}
	plan.InventorySufficient = plan.Shortfall == 0
	if !plan.InventorySufficient {
		log.Warn("Inventory shortfall for %s: %d of %d questions available", in.SubjectID, len(chosen), in.QuestionCount)
	}
	log.Info("Planned %d question(s) for %s at level %d, target difficulty %.1f", len(chosen), in.SubjectID, in.Level, target)
	return plan, nil
}

// usableCoordination returns the coordination object if it may steer this plan.
func usableCoordination(in schema.OrchestratorInput) *schema.CoordinationObject {
	c := in.Coordination
	if c == nil {
		return nil
	}
	log := logging.Get(logging.CategoryOrchestrator)
	if c.Constraints.LockedLevel != in.Level {
		log.Warn("Ignoring coordination locked to level %d for level %d request", c.Constraints.LockedLevel, in.Level)
		return nil
	}
	if !c.Constraints.HasLevelLock() {
		log.Warn("Ignoring coordination without %q constraint", schema.LevelLockToken)
		return nil
	}
	return c
}

// sizeBuckets splits count by mix. Reinforce and stretch take the floor of
// their share; the remainder goes to the target bucket.
func sizeBuckets(count int, mix schema.SessionMix, target int) []bucket {
	reinforce := int(math.Floor(float64(count) * mix.Reinforce))
	stretch := int(math.Floor(float64(count) * mix.Stretch))
	if reinforce+stretch > count {
		stretch = count - reinforce
	}
	return []bucket{
		{name: "reinforce", difficulty: clampInt(target-1, schema.MinDifficulty, schema.MaxDifficulty), size: reinforce},
		{name: "target", difficulty: target, size: count - reinforce - stretch},
		{name: "stretch", difficulty: clampInt(target+1, schema.MinDifficulty, schema.MaxDifficulty), size: stretch},
	}
}

// skillsFor keeps the bucket on the focus skills while they hold enough stock,
// widening to every requested skill otherwise.
func skillsFor(ctx context.Context, inv Inventory, focus, requested []string, b bucket) ([]string, error) {
	if len(focus) == 0 || sameSet(focus, requested) {
		return requested, nil
	}
	stock, err := Stock(ctx, inv, focus, b.difficulty)
	if err != nil {
		return nil, err
	}
	if stock >= b.size || len(requested) == 0 {
		return focus, nil
	}
	logging.Get(logging.CategoryOrchestrator).Debug("Focus skills hold %d at difficulty %d, need %d; widening", stock, b.difficulty, b.size)
	return union(focus, requested), nil
}

// Stock totals servable items across skills at one difficulty.
func Stock(ctx context.Context, inv Inventory, skillIDs []string, difficulty int) (int, error) {
	total := 0
	for _, id := range skillIDs {
		n, err := inv.CountServable(ctx, id, difficulty)
		if err != nil {
			return 0, fmt.Errorf("count %s at difficulty %d: %w", id, difficulty, err)
		}
		total += n
	}
	return total, nil
}

func filterFor(in schema.OrchestratorInput, skills []string, difficulty int, exclude []string, limit int) store.Filter {
	f := store.Filter{
		SkillIDs:   skills,
		Difficulty: difficulty,
		ExcludeIDs: append([]string(nil), exclude...),
		Limit:      limit,
	}
	if len(skills) == 0 {
		f.Domain = in.Domain
		f.Level = in.Level
	}
	return f
}

func clampFloat(v float64, lo, hi int) float64 {
	return math.Max(float64(lo), math.Min(float64(hi), v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
