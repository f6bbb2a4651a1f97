// Package perception invokes generative providers: provider adapters, the retry
// policy, an optional circuit breaker, and usage accounting.
package perception

import (
	"context"

	"scholarforge/internal/types"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// GenerateRequest is one deterministic generation call.
type GenerateRequest struct {
	Model           string
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
}

// GenerateResponse is the provider's raw answer.
type GenerateResponse struct {
	Text         string
	Usage        types.TokenUsage
	ModelVersion string
}

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// ModelMap maps a descriptor tier to a provider model name.
type ModelMap map[types.Tier]string

// DefaultGeminiModels is the tier map used for the Gemini provider.
func DefaultGeminiModels() ModelMap {
	return ModelMap{
		types.TierFast:     "gemini-2.5-flash-lite",
		types.TierBalanced: "gemini-2.5-flash",
		types.TierDeep:     "gemini-2.5-pro",
	}
}

// DefaultAnthropicModels is the tier map used for the Anthropic provider.
func DefaultAnthropicModels() ModelMap {
	return ModelMap{
		types.TierFast:     "claude-haiku-4-5",
		types.TierBalanced: "claude-sonnet-4-5",
		types.TierDeep:     "claude-opus-4-1",
	}
}

// For returns the model for tier, falling back to the balanced model.
func (m ModelMap) For(tier types.Tier) string {
	if name, ok := m[tier]; ok && name != "" {
		return name
	}
	return m[types.TierBalanced]
}
