package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts one wire protocol (OpenAI, Anthropic, Ollama) to the client.
type Provider interface {
	// Name returns the provider identifier used in endpoint configuration.
	Name() string

	// BuildURL constructs the full completion URL from an endpoint base URL.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and protocol headers. apiKey may be empty.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body. A nil temperature uses
	// the provider default; maxTokens <= 0 uses the provider default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the completion from a provider response body.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
