package skills

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"scholarforge/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLoader struct {
	calls   atomic.Int32
	skills  []store.Skill
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeLoader) LoadSkills(ctx context.Context) ([]store.Skill, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.skills, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func catalogue() []store.Skill {
	return []store.Skill{
		{ID: "sub", Name: "Subtraction", Domain: "number", Level: 2},
		{ID: "add", Name: "Addition", Domain: "number", Level: 1},
	}
}

func TestCache_GetAndAll(t *testing.T) {
	loader := &fakeLoader{skills: catalogue()}
	c := NewCache(loader, time.Minute)

	sk, err := c.Get(context.Background(), "add")
	require.NoError(t, err)
	assert.Equal(t, "Addition", sk.Name)

	all, err := c.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "add", all[0].ID)
	assert.EqualValues(t, 1, loader.calls.Load())

	_, err = c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownSkill)
	assert.EqualValues(t, 1, loader.calls.Load(), "a miss on a fresh catalogue does not reload")
}

func TestCache_ReloadsAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	loader := &fakeLoader{skills: catalogue()}
	c := NewCache(loader, time.Minute, WithClock(clock.Now))

	_, err := c.Get(context.Background(), "add")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = c.Get(context.Background(), "add")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Loads())

	clock.Advance(31 * time.Second)
	_, err = c.Get(context.Background(), "add")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Loads())

	c.Invalidate()
	_, err = c.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Loads())
}

func TestCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	loader := &fakeLoader{
		skills:  catalogue(),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	c := NewCache(loader, time.Minute, WithClock(clock.Now))

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "sub")
			errs <- err
		}()
	}
	<-loader.started
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestCache_LoadErrorIsNotCached(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db locked")}
	c := NewCache(loader, time.Minute)

	_, err := c.Get(context.Background(), "add")
	require.Error(t, err)

	loader.err = nil
	loader.skills = catalogue()
	_, err = c.Get(context.Background(), "add")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_CallerCancellation(t *testing.T) {
	loader := &fakeLoader{skills: catalogue(), release: make(chan struct{}), started: make(chan struct{})}
	c := NewCache(loader, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "add")
		done <- err
	}()
	<-loader.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The detached load still completes and fills the cache.
	close(loader.release)
	require.Eventually(t, func() bool { return c.Loads() == 1 }, time.Second, 5*time.Millisecond)
	sk, err := c.Get(context.Background(), "add")
	require.NoError(t, err)
	assert.Equal(t, "Addition", sk.Name)
}

func TestNewCache_DefaultTTL(t *testing.T) {
	c := NewCache(&fakeLoader{}, 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
