package perception

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"scholarforge/internal/catalog"
	"scholarforge/internal/logging"
	"scholarforge/internal/types"
	"scholarforge/internal/usage"
)

// Completion is a successful invocation.
type Completion struct {
	Text         string
	Usage        types.TokenUsage
	Latency      time.Duration
	Model        string
	ModelVersion string
	Attempts     int
}

// Client invokes a Provider on behalf of catalog modules with bounded retries.
type Client struct {
	provider Provider
	models   ModelMap
	policy   RetryPolicy
	sleep    Sleeper
	breaker  *gobreaker.CircuitBreaker
	tracker  *usage.Tracker
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithBreaker wraps every attempt in a circuit breaker built from settings.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(c *Client) {
		if settings.Name == "" {
			settings.Name = c.provider.Name()
		}
		if settings.OnStateChange == nil {
			settings.OnStateChange = func(name string, from, to gobreaker.State) {
				logging.PerceptionWarn("[%s] breaker %s -> %s", name, from, to)
			}
		}
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// WithUsageTracker records successful invocations.
func WithUsageTracker(t *usage.Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a client around p.
func NewClient(p Provider, models ModelMap, policy RetryPolicy, opts ...Option) (*Client, error) {
	if p == nil {
		return nil, &ConfigurationError{Provider: "none", Reason: "no provider configured"}
	}
	if err := policy.Validate(); err != nil {
		return nil, &ConfigurationError{Provider: p.Name(), Reason: err.Error()}
	}
	if len(models) == 0 {
		return nil, &ConfigurationError{Provider: p.Name(), Reason: "empty model map"}
	}
	c := &Client{
		provider: p,
		models:   models,
		policy:   policy,
		sleep:    SleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider returns the wrapped provider's name.
func (c *Client) Provider() string { return c.provider.Name() }

// Invoke sends prompt for the module described by desc. Configuration errors and
// context cancellation end the loop immediately; anything else is retried until
// the policy is exhausted, which yields an *InvocationError.
func (c *Client) Invoke(ctx context.Context, desc catalog.Descriptor, prompt string) (Completion, error) {
	req := GenerateRequest{
		Model:           c.models.For(desc.Tier),
		Prompt:          prompt,
		MaxOutputTokens: desc.MaxOutputTokens,
		Temperature:     0,
	}
	start := c.now()
	logging.PerceptionDebug("[%s] invoke module=%s model=%s prompt_len=%d", c.provider.Name(), desc.ID, req.Model, len(prompt))

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Backoff(attempt)
			if err := c.sleep(ctx, delay); err != nil {
				return Completion{}, fmt.Errorf("invoke %s: %w", desc.ID, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return Completion{}, fmt.Errorf("invoke %s: %w", desc.ID, err)
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			done := Completion{
				Text:         resp.Text,
				Usage:        resp.Usage,
				Latency:      c.now().Sub(start),
				Model:        req.Model,
				ModelVersion: resp.ModelVersion,
				Attempts:     attempt,
			}
			c.record(ctx, desc, done)
			logging.Perception("[%s] module=%s completed in %v attempts=%d response_len=%d",
				c.provider.Name(), desc.ID, done.Latency, attempt, len(resp.Text))
			return done, nil
		}

		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			logging.PerceptionError("[%s] module=%s: %v", c.provider.Name(), desc.ID, err)
			return Completion{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, fmt.Errorf("invoke %s: %w", desc.ID, ctxErr)
		}
		lastErr = err
		logging.PerceptionWarn("[%s] module=%s attempt %d/%d failed: %v", c.provider.Name(), desc.ID, attempt, c.policy.MaxAttempts, err)
	}

	logging.PerceptionError("[%s] module=%s max retries exceeded after %v: %v", c.provider.Name(), desc.ID, c.now().Sub(start), lastErr)
	return Completion{}, &InvocationError{Module: desc.ID, Attempts: c.policy.MaxAttempts, Last: lastErr}
}

func (c *Client) attempt(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if c.breaker == nil {
		return c.provider.Generate(ctx, req)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.provider.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return GenerateResponse{}, &TransportError{Provider: c.provider.Name(), Err: err}
	}
	if err != nil {
		return GenerateResponse{}, err
	}
	return out.(GenerateResponse), nil
}

func (c *Client) record(ctx context.Context, desc catalog.Descriptor, done Completion) {
	tracker := c.tracker
	if tracker == nil {
		tracker = usage.FromContext(ctx)
	}
	if tracker == nil {
		return
	}
	tracker.Track(ctx, usage.Event{
		Model:    done.Model,
		Provider: c.provider.Name(),
		Module:   string(desc.ID),
		Input:    done.Usage.Prompt,
		Output:   done.Usage.Completion,
		Attempts: done.Attempts,
	})
}
