package providers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/semmodel/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conversation = []llm.Message{
	{Role: "system", Content: "You are a UML use case modeler."},
	{Role: "user", Content: "Members borrow books."},
}

func TestProvidersRegistered(t *testing.T) {
	for _, name := range []string{"anthropic", "ollama", "openai"} {
		p := llm.GetProvider(name)
		require.NotNil(t, p, name)
		assert.Equal(t, name, p.Name())
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		baseURL  string
		want     string
	}{
		{"anthropic default", &AnthropicProvider{}, "", "https://api.anthropic.com/v1/messages"},
		{"anthropic trailing slash", &AnthropicProvider{}, "https://proxy.internal/", "https://proxy.internal/v1/messages"},
		{"ollama default", &OllamaProvider{}, "", "http://localhost:11434/v1/chat/completions"},
		{"ollama full path kept", &OllamaProvider{}, "http://gpu:8000/v1/chat/completions", "http://gpu:8000/v1/chat/completions"},
		{"openai default", &OpenAIProvider{}, "", "https://api.openai.com/v1/chat/completions"},
		{"openai custom", &OpenAIProvider{}, "https://gateway.example.com/v1/", "https://gateway.example.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.BuildURL(tt.baseURL))
		})
	}
}

func TestSetHeaders(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		key      string
		header   string
		want     string
	}{
		{"openai key", &OpenAIProvider{}, "sk-test", "Authorization", "Bearer sk-test"},
		{"openai no key", &OpenAIProvider{}, "", "Authorization", ""},
		{"ollama key", &OllamaProvider{}, "local-token", "Authorization", "Bearer local-token"},
		{"anthropic key", &AnthropicProvider{}, "ant-key", "x-api-key", "ant-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", nil)
			tt.provider.SetHeaders(req, tt.key)
			assert.Equal(t, tt.want, req.Header.Get(tt.header))
		})
	}

	req := httptest.NewRequest("POST", "/", nil)
	(&AnthropicProvider{}).SetHeaders(req, "")
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestOpenAICompatibleRequestBody(t *testing.T) {
	temp := 0.0
	body, err := (&OllamaProvider{}).BuildRequestBody("qwen2.5:14b", conversation, &temp, 2048)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "qwen2.5:14b", got["model"])
	assert.Equal(t, 0.0, got["temperature"])
	assert.Equal(t, 2048.0, got["max_tokens"])
	assert.Len(t, got["messages"], 2)

	body, err = (&OpenAIProvider{}).BuildRequestBody("gpt-4o", conversation, nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "temperature")
	assert.NotContains(t, string(body), "max_tokens")
}

func TestAnthropicRequestBody(t *testing.T) {
	body, err := (&AnthropicProvider{}).BuildRequestBody("claude-sonnet-4-20250514", conversation, nil, 0)
	require.NoError(t, err)

	var got anthropicRequest
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "You are a UML use case modeler.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.Nil(t, got.Temperature)
}

func TestOpenAICompatibleParseResponse(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o-2024-08-06",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"actors\": []}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
	}`)

	resp, err := (&OpenAIProvider{}).ParseResponse(body, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, `{"actors": []}`, resp.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16}, resp.Usage)

	resp, err = (&OllamaProvider{}).ParseResponse([]byte(`{"choices": [{"message": {"content": "hi"}}]}`), "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", resp.Model)

	_, err = (&OllamaProvider{}).ParseResponse([]byte(`{"choices": []}`), "llama3.2")
	assert.Error(t, err)

	_, err = (&OllamaProvider{}).ParseResponse([]byte(`<html>bad gateway</html>`), "llama3.2")
	assert.Error(t, err)
}

func TestAnthropicParseResponse(t *testing.T) {
	body := []byte(`{
		"type": "message",
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "part one, "}, {"type": "tool_use"}, {"type": "text", "text": "part two"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 20, "output_tokens": 3}
	}`)

	resp, err := (&AnthropicProvider{}).ParseResponse(body, "")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", resp.Content)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)

	_, err = (&AnthropicProvider{}).ParseResponse([]byte(`{"type": "error"}`), "")
	assert.Error(t, err)
}

func TestParseResponse_ErrorEnvelopes(t *testing.T) {
	_, err := (&OpenAIProvider{}).ParseResponse([]byte(`{"error": {"message": "model not loaded", "type": "invalid_request_error"}}`), "gpt-4o")
	assert.ErrorContains(t, err, "model not loaded")

	_, err = (&AnthropicProvider{}).ParseResponse([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`), "")
	assert.EqualError(t, err, "anthropic overloaded_error: Overloaded")
}

func TestAnthropicJoinsSystemMessages(t *testing.T) {
	msgs := append([]llm.Message{{Role: "system", Content: "Answer in JSON."}}, conversation...)
	body, err := (&AnthropicProvider{}).BuildRequestBody("claude-sonnet-4-20250514", msgs, nil, 1024)
	require.NoError(t, err)

	var got anthropicRequest
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Answer in JSON.\n\nYou are a UML use case modeler.", got.System)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Len(t, got.Messages, 1)
}
