package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry manages model selection based on capabilities.
// It maps capabilities to preferred endpoints with fallback chains.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     *DefaultsConfig
	health       *healthState
}

// CapabilityConfig defines endpoint preferences for a capability.
type CapabilityConfig struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Preferred lists endpoint names in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup endpoints tried after every preferred one failed.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the wire protocol: openai, anthropic or ollama.
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the context window size.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// APIKey is the credential sent with each request. It is never serialized
	// to JSON.
	APIKey string `json:"-" yaml:"api_key,omitempty"`

	// APIKeyEnv names an environment variable holding the credential. The
	// registry never reads it; callers resolve it into APIKey.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// DefaultsConfig holds default model settings.
type DefaultsConfig struct {
	// Model is the endpoint used when no capability matches.
	Model string `json:"model" yaml:"model"`
}

// RegistryConfig is the serialized form of a Registry.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// KnownProviders lists the provider names an endpoint may use.
var KnownProviders = []string{"openai", "anthropic", "ollama"}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaults:     &DefaultsConfig{Model: "default"},
	}
}

// NewDefaultRegistry creates a registry that prefers hosted OpenAI models and
// falls back to a local Ollama model.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityReasoning: {
				Description: "Requirements analysis, model revision",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"claude-sonnet", "qwen"},
			},
			CapabilityModeling: {
				Description: "Use case, class and sequence diagram generation",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"claude-sonnet", "qwen"},
			},
			CapabilityFormal: {
				Description: "OCL constraints",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"qwen"},
			},
			CapabilityReviewing: {
				Description: "Model validation",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"gpt-4o", "qwen"},
			},
			CapabilityFast: {
				Description: "Quick responses",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"qwen"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"gpt-4o": {
				Provider:  "openai",
				URL:       "https://api.openai.com/v1",
				Model:     "gpt-4o",
				MaxTokens: 128000,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"gpt-4o-mini": {
				Provider:  "openai",
				URL:       "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				MaxTokens: 128000,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"claude-sonnet": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 200000,
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			"qwen": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "qwen2.5:14b",
				MaxTokens: 128000,
			},
		},
		defaults: &DefaultsConfig{
			Model: "gpt-4o",
		},
	}
}

// NewFromConfig builds a registry from its serialized form. Unknown
// capability names are kept verbatim.
func NewFromConfig(cfg *RegistryConfig) *Registry {
	r := NewRegistry(nil, nil)
	r.MergeFromConfig(cfg)
	return r
}

// Resolve returns the preferred endpoint for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaults.Model
}

// GetFallbackChain returns all endpoints for a capability in order of preference.
func (r *Registry) GetFallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	return []string{r.defaults.Model}
}

// GetEndpoint returns the endpoint configuration for a name, or nil.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetDefault sets the default endpoint.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defaults == nil {
		r.defaults = &DefaultsConfig{}
	}
	r.defaults.Model = name
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every referenced endpoint exists and names a known
// provider.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, ep := range r.endpoints {
		if ep == nil {
			errs = append(errs, fmt.Errorf("endpoint %q: empty configuration", name))
			continue
		}
		if !knownProvider(ep.Provider) {
			errs = append(errs, fmt.Errorf("endpoint %q: unknown provider %q", name, ep.Provider))
		}
		if ep.Model == "" {
			errs = append(errs, fmt.Errorf("endpoint %q: model is required", name))
		}
	}
	for c, cfg := range r.capabilities {
		if cfg == nil {
			continue
		}
		for _, name := range append(append([]string{}, cfg.Preferred...), cfg.Fallback...) {
			if _, ok := r.endpoints[name]; !ok {
				errs = append(errs, fmt.Errorf("capability %q: unknown endpoint %q", c, name))
			}
		}
	}
	if r.defaults != nil && r.defaults.Model != "" {
		if _, ok := r.endpoints[r.defaults.Model]; !ok {
			errs = append(errs, fmt.Errorf("default endpoint %q is not configured", r.defaults.Model))
		}
	}
	return errors.Join(errs...)
}

func knownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// ToConfig converts a Registry to its serialized form.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}

	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    r.endpoints,
		Defaults:     r.defaults,
	}
}

// MergeFromConfig merges configuration into an existing registry.
// Existing entries are overwritten by the new config.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) {
	if cfg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			c = Capability(k)
		}
		r.capabilities[c] = v
	}
	for k, v := range cfg.Endpoints {
		r.endpoints[k] = v
	}
	if cfg.Defaults != nil && cfg.Defaults.Model != "" {
		r.defaults = cfg.Defaults
	}
}

// MarshalJSON implements json.Marshaler. Credentials are omitted.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToConfig())
}
