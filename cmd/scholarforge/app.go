package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"

	"scholarforge/internal/catalog"
	"scholarforge/internal/config"
	"scholarforge/internal/contract"
	"scholarforge/internal/flows"
	"scholarforge/internal/logging"
	"scholarforge/internal/perception"
	"scholarforge/internal/prompt"
	"scholarforge/internal/runner"
	"scholarforge/internal/skills"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
	"scholarforge/internal/usage"
)

// app is the wired service graph for one command invocation.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	tracker *usage.Tracker
	skills  *skills.Cache
	runner  *runner.Runner
	flows   *flows.Service
}

// openStore opens the configured database, creating its directory.
func openStore(ctx context.Context, c *config.Config) (*store.SQLiteStore, error) {
	if dir := filepath.Dir(c.Store.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return store.Open(ctx, c.Store.DatabasePath)
}

// newApp wires config → provider → client → runner → store → skills → flows.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	provider, models, err := newProvider(ctx, c)
	if err != nil {
		return nil, err
	}
	tracker, err := usage.NewTracker(c.Usage.Path)
	if err != nil {
		return nil, err
	}

	clientOpts := []perception.Option{perception.WithUsageTracker(tracker)}
	if c.Breaker.Enabled {
		clientOpts = append(clientOpts, perception.WithBreaker(breakerSettings(c)))
	}
	policy := perception.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.GetRetryBaseDelay(),
		MaxDelay:    c.GetRetryMaxDelay(),
	}
	client, err := perception.NewClient(provider, models, policy, clientOpts...)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	r, err := runner.New(cat, prompt.Default(), contract.Default(cat), client,
		runner.WithTracer(otel.Tracer("scholarforge/cli")))
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	cache := skills.NewCache(st, c.GetSkillsTTL())
	svc, err := flows.NewService(r, st, cache, flows.WithRunObserver(journal(st)))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logging.Get(logging.CategoryBoot).Info("Wired %s provider (%d model tier(s)) with store %s", provider.Name(), len(models), st.Path())
	return &app{cfg: c, store: st, tracker: tracker, skills: cache, runner: r, flows: svc}, nil
}

// Close persists usage and closes the store.
func (a *app) Close() error {
	return errors.Join(a.tracker.Save(), a.store.Close())
}

func newProvider(ctx context.Context, c *config.Config) (perception.Provider, perception.ModelMap, error) {
	var (
		p      perception.Provider
		models perception.ModelMap
		err    error
	)
	switch c.Provider.Name {
	case config.ProviderAnthropic:
		p, err = perception.NewAnthropicProvider(perception.AnthropicConfig{
			APIKey:  c.Provider.AnthropicAPIKey,
			BaseURL: c.Provider.AnthropicBaseURL,
			Timeout: c.GetProviderTimeout(),
		})
		models = perception.DefaultAnthropicModels()
	default:
		p, err = perception.NewGeminiProvider(ctx, c.Provider.GeminiAPIKey)
		models = perception.DefaultGeminiModels()
	}
	if err != nil {
		return nil, nil, err
	}
	for tier, model := range c.Provider.Models {
		models[types.Tier(tier)] = model
	}
	return p, models, nil
}

func breakerSettings(c *config.Config) gobreaker.Settings {
	threshold := c.Breaker.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.Settings{
		MaxRequests: c.Breaker.HalfOpenRequests,
		Timeout:     c.GetBreakerTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
}

// journal records every flow-level run in the store.
func journal(st *store.SQLiteStore) flows.RunObserver {
	return func(ctx context.Context, res runner.RunResult) {
		rec := runRecord(res)
		if err := st.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to journal run %s: %v", res.RunID, err)
		}
	}
}

func runRecord(res runner.RunResult) store.RunRecord {
	return store.RunRecord{
		RunID:            res.RunID,
		Module:           string(res.Module),
		PromptVersion:    res.PromptVersion,
		ModelVersion:     res.ModelVersion,
		Success:          res.Success,
		SafetyDecision:   string(res.SafetyDecision),
		LatencyMs:        res.LatencyMs,
		PromptTokens:     res.Usage.Prompt,
		CompletionTokens: res.Usage.Completion,
		ValidationErrors: res.ValidationErrors,
	}
}

// withApp builds the app for one command and tears it down afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("Shutdown: %v", err)
	}
	return runErr
}

// withStore opens only the store, for commands that never call a model.
func withStore(fn func(ctx context.Context, st *store.SQLiteStore) error) error {
	ctx, cancel := commandContext()
	defer cancel()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}
