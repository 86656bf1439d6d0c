package providers

import "github.com/c360studio/semmodel/llm"

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
	llm.RegisterProvider(&OllamaProvider{})
}

// OpenAIProvider targets the hosted OpenAI API or any gateway configured by URL.
type OpenAIProvider struct {
	chatCompletions
}

func (*OpenAIProvider) Name() string { return "openai" }

func (*OpenAIProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "https://api.openai.com/v1")
}

// OllamaProvider targets a local Ollama server through its OpenAI-compatible
// endpoint. vLLM and LiteLLM work the same way with their own URL.
type OllamaProvider struct {
	chatCompletions
}

func (*OllamaProvider) Name() string { return "ollama" }

func (*OllamaProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "http://localhost:11434/v1")
}
