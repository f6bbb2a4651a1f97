package perception

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ProviderAnthropic, cfgErr.Provider)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAnthropicProvider_Generate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"claude-sonnet-4-5-20250929","content":[{"type":"text","text":"{\"hint\":"},{"type":"text","text":"\"x\"}"}],"usage":{"input_tokens":12,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), GenerateRequest{Model: "claude-sonnet-4-5", Prompt: "hello", MaxOutputTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, `{"hint":"x"}`, resp.Text)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.ModelVersion)
	assert.Equal(t, 12, resp.Usage.Prompt)
	assert.Equal(t, 4, resp.Usage.Completion)

	assert.Equal(t, "claude-sonnet-4-5", got.Model)
	assert.Equal(t, int32(256), got.MaxTokens)
	assert.Equal(t, float32(0), got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestAnthropicProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCfg   bool
		wantTrans bool
	}{
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusBadGateway, false, true},
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"forbidden", http.StatusForbidden, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"type":"x","message":"nope"}}`))
			}))
			defer srv.Close()

			p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = p.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
			require.Error(t, err)

			var cfgErr *ConfigurationError
			var transErr *TransportError
			assert.Equal(t, tt.wantCfg, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantTrans, errors.As(err, &transErr))
			if tt.wantTrans {
				assert.Equal(t, tt.status, transErr.StatusCode)
			}
		})
	}
}

func TestAnthropicProvider_BodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"type":"overloaded_error","message":"busy"}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
	assert.Contains(t, err.Error(), "busy")
}
