// Package providers registers the LLM wire adapters with the llm package.
// Import it for side effects:
//
//	import _ "github.com/c360studio/semmodel/llm/providers"
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/semmodel/llm"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicMaxTokens = 4096 // max_tokens is mandatory on the messages API
)

func init() {
	llm.RegisterProvider(&AnthropicProvider{})
}

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct{}

func (*AnthropicProvider) Name() string { return "anthropic" }

func (*AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1/messages"
}

func (*AnthropicProvider) SetHeaders(req *http.Request, apiKey string) {
	req.Header.Set("anthropic-version", anthropicVersion)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// BuildRequestBody lifts system messages into the top-level system field;
// several are joined with a blank line.
func (*AnthropicProvider) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	req := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicMaxTokens
	}

	var system []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	req.System = strings.Join(system, "\n\n")
	return json.Marshal(req)
}

type anthropicResponse struct {
	Type    string `json:"type"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseResponse concatenates the text blocks; other block types are ignored.
func (*AnthropicProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}
	if resp.Type == "error" {
		if resp.Error != nil {
			return nil, fmt.Errorf("anthropic %s: %s", resp.Error.Type, resp.Error.Message)
		}
		return nil, errors.New("anthropic error response")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &llm.Response{
		Content:      text.String(),
		Model:        model,
		FinishReason: resp.StopReason,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
