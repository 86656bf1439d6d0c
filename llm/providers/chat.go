package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/semmodel/llm"
)

// chatCompletions is the /chat/completions wire format shared by OpenAI,
// Ollama, vLLM and LiteLLM. Providers embed it and supply Name and BuildURL.
type chatCompletions struct{}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	// Some gateways answer 200 with an error envelope.
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// chatCompletionsURL appends /chat/completions to base unless it is already
// there. An empty base uses fallback.
func chatCompletionsURL(base, fallback string) string {
	if base == "" {
		base = fallback
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// SetHeaders sets a bearer token when the endpoint has a key.
func (chatCompletions) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// BuildRequestBody encodes messages as a chat completion request. A nil
// temperature and a non-positive maxTokens are omitted.
func (chatCompletions) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	req := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return json.Marshal(req)
}

// ParseResponse reads the first choice. The requested model name is used when
// the server does not echo one back.
func (chatCompletions) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse chat completion: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("chat completion error (%s): %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion has no choices")
	}

	choice := resp.Choices[0]
	if resp.Model != "" {
		model = resp.Model
	}
	return &llm.Response{
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
