package perception

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarforge/internal/catalog"
	"scholarforge/internal/types"
	"scholarforge/internal/usage"
)

type scriptedProvider struct {
	mu        sync.Mutex
	calls     int
	responses []GenerateResponse
	errs      []error
	requests  []GenerateRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return GenerateResponse{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return GenerateResponse{}, &TransportError{Provider: "scripted", Err: errors.New("unavailable")}
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func tutorDescriptor(t *testing.T) catalog.Descriptor {
	t.Helper()
	desc, ok := catalog.Default().Lookup(types.ModuleTutor)
	require.True(t, ok)
	return desc
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, time.Duration(0), p.Backoff(1))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(4))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(6))
	assert.Equal(t, time.Second, p.Backoff(40))

	uncapped := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
	assert.Equal(t, 4*time.Second, uncapped.Backoff(4))
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.Error(t, RetryPolicy{}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 1, BaseDelay: -1}.Validate())
	assert.NoError(t, DefaultRetryPolicy().Validate())
}

func TestNewClient_Configuration(t *testing.T) {
	_, err := NewClient(nil, DefaultGeminiModels(), DefaultRetryPolicy())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewClient(&scriptedProvider{}, ModelMap{}, DefaultRetryPolicy())
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewClient(&scriptedProvider{}, DefaultGeminiModels(), RetryPolicy{})
	require.ErrorAs(t, err, &cfgErr)
}

func TestInvoke_SucceedsAfterTransientFailures(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{
			&TransportError{Provider: "scripted", StatusCode: 503, Err: errors.New("overloaded")},
			&TransportError{Provider: "scripted", StatusCode: 429, Err: errors.New("rate limited")},
		},
		responses: []GenerateResponse{{}, {}, {Text: `{"ok":true}`, ModelVersion: "v1", Usage: types.TokenUsage{Prompt: 7, Completion: 3}}},
	}
	sleeper := &recordingSleeper{}
	tracker, err := usage.NewTracker("")
	require.NoError(t, err)

	client, err := NewClient(provider, DefaultGeminiModels(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
		WithSleeper(sleeper.sleep), WithUsageTracker(tracker))
	require.NoError(t, err)

	desc := tutorDescriptor(t)
	done, err := client.Invoke(context.Background(), desc, "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, done.Text)
	assert.Equal(t, 3, done.Attempts)
	assert.Equal(t, "v1", done.ModelVersion)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)

	require.Len(t, provider.requests, 3)
	assert.Equal(t, DefaultGeminiModels().For(desc.Tier), provider.requests[0].Model)
	assert.Equal(t, float32(0), provider.requests[0].Temperature)
	assert.Equal(t, desc.MaxOutputTokens, provider.requests[0].MaxOutputTokens)

	stats := tracker.Stats()
	assert.Equal(t, int64(10), stats.ByModule[string(types.ModuleTutor)].Total)
	assert.Equal(t, int64(2), stats.Retries)
}

func TestInvoke_ExhaustionMakesExactlyMaxAttempts(t *testing.T) {
	provider := &scriptedProvider{}
	sleeper := &recordingSleeper{}
	client, err := NewClient(provider, DefaultGeminiModels(), RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond},
		WithSleeper(sleeper.sleep))
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), tutorDescriptor(t), "prompt")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 4, invErr.Attempts)
	assert.Equal(t, types.ModuleTutor, invErr.Module)
	var transport *TransportError
	assert.ErrorAs(t, err, &transport)

	assert.Equal(t, 4, provider.calls)
	require.Len(t, sleeper.delays, 3)
	for i := 1; i < len(sleeper.delays); i++ {
		assert.Greater(t, sleeper.delays[i], sleeper.delays[i-1])
	}
}

func TestInvoke_ConfigurationErrorIsNotRetried(t *testing.T) {
	provider := &scriptedProvider{errs: []error{&ConfigurationError{Provider: "scripted", Reason: "bad key"}}}
	client, err := NewClient(provider, DefaultGeminiModels(), DefaultRetryPolicy(), WithSleeper((&recordingSleeper{}).sleep))
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), tutorDescriptor(t), "prompt")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, provider.calls)
}

func TestInvoke_CancellationIsNotRetried(t *testing.T) {
	provider := &scriptedProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	client, err := NewClient(provider, DefaultGeminiModels(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}, WithSleeper(sleeper))
	require.NoError(t, err)

	_, err = client.Invoke(ctx, tutorDescriptor(t), "prompt")
	require.ErrorIs(t, err, context.Canceled)
	var invErr *InvocationError
	assert.False(t, errors.As(err, &invErr))
	assert.Equal(t, 1, provider.calls)
}

func TestInvoke_OpenBreakerCountsAsTransportFailure(t *testing.T) {
	provider := &scriptedProvider{}
	client, err := NewClient(provider, DefaultGeminiModels(), RetryPolicy{MaxAttempts: 3},
		WithSleeper((&recordingSleeper{}).sleep),
		WithBreaker(gobreaker.Settings{
			Timeout:     time.Hour,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
		}))
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), tutorDescriptor(t), "prompt")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 1, provider.calls, "open breaker short-circuits later attempts")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestModelMap_ForFallsBackToBalanced(t *testing.T) {
	m := ModelMap{types.TierBalanced: "b"}
	assert.Equal(t, "b", m.For(types.TierDeep))
}
