// Package usage accounts provider token usage by provider, model, module and flow.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scholarforge/internal/logging"
)

type trackerKey struct{}
type flowKey struct{}

// Tracker aggregates usage in memory and persists it on Save.
// A Tracker with an empty path never touches disk.
type Tracker struct {
	mu       sync.Mutex
	data     Data
	filePath string
	dirty    bool
	now      func() time.Time
}

// NewTracker creates a tracker persisted at path, loading any existing data.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{
		filePath: path,
		data:     Data{Version: "1.0", Aggregate: newAggregate()},
		now:      time.Now,
	}
	if path == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}
	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryUsage).Warn("Ignoring unreadable usage file %s: %v", path, err)
	}
	return t, nil
}

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := os.ReadFile(t.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	fresh := newAggregate()
	if data.Aggregate.ByProvider == nil {
		data.Aggregate.ByProvider = fresh.ByProvider
	}
	if data.Aggregate.ByModel == nil {
		data.Aggregate.ByModel = fresh.ByModel
	}
	if data.Aggregate.ByModule == nil {
		data.Aggregate.ByModule = fresh.ByModule
	}
	if data.Aggregate.ByFlow == nil {
		data.Aggregate.ByFlow = fresh.ByFlow
	}
	t.data = data
	return nil
}

// Save writes the usage data to disk if anything changed.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filePath == "" || !t.dirty {
		return nil
	}
	t.data.UpdatedAt = t.now().UTC()
	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.filePath, raw, 0644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records one invocation. The flow name is read from ctx.
func (t *Tracker) Track(ctx context.Context, ev Event) {
	flow := FlowFromContext(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	agg := &t.data.Aggregate
	agg.Total.Add(ev.Input, ev.Output)
	agg.Calls++
	if ev.Attempts > 1 {
		agg.Retries += int64(ev.Attempts - 1)
	}
	addToMap(agg.ByProvider, ev.Provider, ev.Input, ev.Output)
	addToMap(agg.ByModel, ev.Model, ev.Input, ev.Output)
	addToMap(agg.ByModule, ev.Module, ev.Input, ev.Output)
	addToMap(agg.ByFlow, flow, ev.Input, ev.Output)
	t.dirty = true
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByModule = copyTokenCountsMap(stats.ByModule)
	stats.ByFlow = copyTokenCountsMap(stats.ByFlow)
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	if key == "" {
		key = "unknown"
	}
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext retrieves the tracker from the context.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// WithFlow tags ctx with the domain flow name used for ByFlow accounting.
func WithFlow(ctx context.Context, flow string) context.Context {
	return context.WithValue(ctx, flowKey{}, flow)
}

// FlowFromContext returns the flow tag, or "direct" when none was set.
func FlowFromContext(ctx context.Context) string {
	if flow, ok := ctx.Value(flowKey{}).(string); ok && flow != "" {
		return flow
	}
	return "direct"
}
