// Package skills caches the skill catalogue. The cache is read-mostly: the
// whole catalogue is reloaded once its TTL lapses, and concurrent misses share
// a single backing-store read.
package skills

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"scholarforge/internal/logging"
	"scholarforge/internal/store"
)

// ErrUnknownSkill is returned for ids absent from a fresh catalogue.
var ErrUnknownSkill = errors.New("unknown skill")

// DefaultTTL is the invalidation window used when none is configured.
const DefaultTTL = 5 * time.Minute

// Loader reads the full skill catalogue.
type Loader interface {
	LoadSkills(ctx context.Context) ([]store.Skill, error)
}

// Cache is a TTL cache over a Loader.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	byID     map[string]store.Skill
	loadedAt time.Time
	loads    int

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache. A non-positive ttl selects DefaultTTL.
func NewCache(loader Loader, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{loader: loader, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns one skill, reloading the catalogue if it is stale.
func (c *Cache) Get(ctx context.Context, id string) (store.Skill, error) {
	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return store.Skill{}, err
	}
	sk, ok := snapshot[id]
	if !ok {
		return store.Skill{}, fmt.Errorf("%w: %s", ErrUnknownSkill, id)
	}
	return sk, nil
}

// All returns every skill ordered by id.
func (c *Cache) All(ctx context.Context) ([]store.Skill, error) {
	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Skill, 0, len(snapshot))
	for _, sk := range snapshot {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Invalidate forces the next read to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// Loads reports how many backing-store reads the cache has made.
func (c *Cache) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}

func (c *Cache) snapshot(ctx context.Context) (map[string]store.Skill, error) {
	if byID, ok := c.fresh(); ok {
		return byID, nil
	}

	// Detached: one caller's cancellation must not fail the shared load.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("skills", func() (any, error) {
		if byID, ok := c.fresh(); ok {
			return byID, nil
		}
		return c.reload(loadCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]store.Skill), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fresh() (map[string]store.Skill, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.byID == nil || c.loadedAt.IsZero() || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.byID, true
}

func (c *Cache) reload(ctx context.Context) (map[string]store.Skill, error) {
	timer := logging.StartTimer(logging.CategorySkills, "reload")
	defer timer.Stop()

	list, err := c.loader.LoadSkills(ctx)
	if err != nil {
		logging.Get(logging.CategorySkills).Error("Skill reload failed: %v", err)
		return nil, fmt.Errorf("load skills: %w", err)
	}
	byID := make(map[string]store.Skill, len(list))
	for _, sk := range list {
		byID[sk.ID] = sk
	}

	c.mu.Lock()
	c.byID = byID
	c.loadedAt = c.now()
	c.loads++
	c.mu.Unlock()

	logging.Get(logging.CategorySkills).Debug("Reloaded %d skill(s)", len(byID))
	return byID, nil
}
