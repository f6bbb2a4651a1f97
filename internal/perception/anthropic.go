package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scholarforge/internal/logging"
	"scholarforge/internal/types"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicSystemPrompt   = "You are a component of an adaptive learning service. Reply with a single JSON object and nothing else."
)

// AnthropicConfig holds Anthropic connection settings.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int32              `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float32            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnthropicProvider calls the Anthropic messages API over HTTPS.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicProvider validates cfg and returns a provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Provider: ProviderAnthropic, Reason: "ANTHROPIC_API_KEY is not set"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &AnthropicProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements Provider.
func (a *AnthropicProvider) Name() string { return ProviderAnthropic }

// Generate implements Provider. Non-2xx statuses become TransportErrors; 401 and
// 403 are configuration errors because no retry can fix a bad key.
func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      anthropicSystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	logging.APIDebug("POST %s/messages model=%s bytes=%d", a.baseURL, req.Model, len(body))
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, &TransportError{Provider: ProviderAnthropic, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, &TransportError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logging.PerceptionError("[Anthropic] rejected credentials (status %d)", resp.StatusCode)
		return GenerateResponse{}, &ConfigurationError{Provider: ProviderAnthropic, Reason: fmt.Sprintf("credentials rejected with status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		logging.API("[Anthropic] status %d for model %s", resp.StatusCode, req.Model)
		return GenerateResponse{}, &TransportError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(raw), 200))}
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return GenerateResponse{}, &TransportError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if decoded.Error != nil {
		return GenerateResponse{}, &TransportError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("API error: %s", decoded.Error.Message)}
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	logging.PerceptionDebug("[Anthropic] model=%s response_len=%d", decoded.Model, text.Len())
	return GenerateResponse{
		Text:         text.String(),
		ModelVersion: decoded.Model,
		Usage: types.TokenUsage{
			Prompt:     decoded.Usage.InputTokens,
			Completion: decoded.Usage.OutputTokens,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
