package perception

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"scholarforge/internal/logging"
	"scholarforge/internal/types"
)

// GeminiProvider generates JSON completions through the Google GenAI SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider. An empty key is a configuration error.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Provider: ProviderGemini, Reason: "GEMINI_API_KEY is not set"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConfigurationError{Provider: ProviderGemini, Reason: fmt.Sprintf("failed to create GenAI client: %v", err)}
	}
	return &GeminiProvider{client: client}, nil
}

// Name implements Provider.
func (g *GeminiProvider) Name() string { return ProviderGemini }

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = req.MaxOutputTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return GenerateResponse{}, &TransportError{Provider: ProviderGemini, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return GenerateResponse{}, &TransportError{Provider: ProviderGemini, Err: fmt.Errorf("no candidates returned")}
	}

	out := GenerateResponse{Text: resp.Text(), ModelVersion: resp.ModelVersion}
	if resp.UsageMetadata != nil {
		out.Usage = types.TokenUsage{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Completion: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	logging.PerceptionDebug("[Gemini] model=%s version=%s tokens=%d", req.Model, out.ModelVersion, out.Usage.Total())
	return out, nil
}
