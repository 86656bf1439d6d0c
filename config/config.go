// Package config provides layered YAML configuration for semmodel.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/model"
	"github.com/c360studio/semmodel/workflow"
	"gopkg.in/yaml.v3"
)

// Config is the complete semmodel configuration.
type Config struct {
	Models   model.RegistryConfig  `yaml:"models"`
	Roles    map[string]RoleConfig `yaml:"roles,omitempty"`
	Workflow WorkflowConfig        `yaml:"workflow"`
	LLM      LLMConfig             `yaml:"llm"`
	Store    StoreConfig           `yaml:"store"`
	Events   EventsConfig          `yaml:"events"`
	Server   ServerConfig          `yaml:"server"`
	Watch    WatchConfig           `yaml:"watch"`
}

// RoleConfig overrides model selection for one agent role.
type RoleConfig struct {
	// Model names a registry endpoint.
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// WorkflowConfig configures the modeling state machine.
type WorkflowConfig struct {
	MaxIterations int   `yaml:"max_iterations"`
	MaxTokens     int   `yaml:"max_tokens"`
	FormatRetries int   `yaml:"format_retries"`
	IntegrityGate *bool `yaml:"integrity_gate,omitempty"`
}

// LLMConfig configures the LLM client.
type LLMConfig struct {
	Timeout           time.Duration   `yaml:"timeout"`
	ProxyURL          string          `yaml:"proxy_url,omitempty"`
	RequestsPerSecond float64         `yaml:"requests_per_second"`
	Burst             int             `yaml:"burst"`
	Temperature       *float64        `yaml:"temperature,omitempty"`
	Retry             llm.RetryConfig `yaml:"retry"`
}

// StoreConfig configures run history and generated output.
type StoreConfig struct {
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// OutputDir receives generated models when no output path is given.
	OutputDir string `yaml:"output_dir,omitempty"`
}

// EventsConfig configures NATS event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics *bool  `yaml:"metrics,omitempty"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Patterns []string      `yaml:"patterns,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns a Config with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			MaxIterations: workflow.DefaultMaxIterations,
			MaxTokens:     workflow.DefaultMaxTokens,
			FormatRetries: 0,
			IntegrityGate: boolPtr(true),
		},
		LLM: LLMConfig{
			Timeout: llm.DefaultTimeout,
			Burst:   1,
			Retry:   llm.DefaultRetryConfig(),
		},
		Store: StoreConfig{
			Path: filepath.Join(".semmodel", "runs.db"),
		},
		Events: EventsConfig{
			SubjectPrefix: "semmodel",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: boolPtr(true),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
			Patterns: []string{"**/*.md", "**/*.txt", "**/*.html"},
		},
	}
}

// IntegrityGateEnabled reports whether consistency errors block a pass.
func (c *Config) IntegrityGateEnabled() bool {
	return c.Workflow.IntegrityGate == nil || *c.Workflow.IntegrityGate
}

// MetricsEnabled reports whether /metrics is served.
func (c *Config) MetricsEnabled() bool {
	return c.Server.Metrics == nil || *c.Server.Metrics
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Workflow.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("workflow.max_iterations must be at least 1"))
	}
	if c.Workflow.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("workflow.max_tokens must be at least 1"))
	}
	if c.Workflow.FormatRetries < 0 {
		errs = append(errs, fmt.Errorf("workflow.format_retries must not be negative"))
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_second must not be negative"))
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2"))
	}
	if c.LLM.ProxyURL != "" {
		if _, err := url.Parse(c.LLM.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("llm.proxy_url: %w", err))
		}
	}
	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Events.NATSURL != "" && c.Events.SubjectPrefix == "" {
		errs = append(errs, fmt.Errorf("events.subject_prefix is required when events.nats_url is set"))
	}
	for name := range c.Roles {
		if !knownRole(agent.Role(name)) {
			errs = append(errs, fmt.Errorf("roles: unknown role %q", name))
		}
	}
	return errors.Join(errs...)
}

func knownRole(role agent.Role) bool {
	for _, r := range agent.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// Registry builds the model registry: the defaults, then the configured
// models. Endpoint credentials named by api_key_env are looked up with getenv.
func (c *Config) Registry(getenv func(string) string) (*model.Registry, error) {
	r := model.NewDefaultRegistry()
	r.MergeFromConfig(&c.Models)

	for _, name := range r.ListEndpoints() {
		ep := r.GetEndpoint(name)
		if ep == nil || ep.APIKey != "" || ep.APIKeyEnv == "" || getenv == nil {
			continue
		}
		resolved := *ep
		resolved.APIKey = getenv(ep.APIKeyEnv)
		r.SetEndpoint(name, &resolved)
	}
	for role, rc := range c.Roles {
		if rc.Model != "" && r.GetEndpoint(rc.Model) == nil {
			return nil, fmt.Errorf("roles.%s.model: unknown endpoint %q", role, rc.Model)
		}
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	return r, nil
}

// ControllerConfig returns the workflow controller configuration.
func (c *Config) ControllerConfig() workflow.Config {
	wc := workflow.Config{
		MaxIterations: c.Workflow.MaxIterations,
		MaxTokens:     c.Workflow.MaxTokens,
		FormatRetries: c.Workflow.FormatRetries,
		IntegrityGate: c.IntegrityGateEnabled(),
	}
	for name, rc := range c.Roles {
		role := agent.Role(name)
		if rc.Model != "" {
			if wc.Models == nil {
				wc.Models = make(map[agent.Role]string)
			}
			wc.Models[role] = rc.Model
		}
		if rc.MaxTokens > 0 {
			if wc.RoleMaxTokens == nil {
				wc.RoleMaxTokens = make(map[agent.Role]int)
			}
			wc.RoleMaxTokens[role] = rc.MaxTokens
		}
	}
	return wc
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one. Non-zero values in other win;
// map entries are merged key by key.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	mergeModels(&c.Models, &other.Models)
	for name, rc := range other.Roles {
		if c.Roles == nil {
			c.Roles = make(map[string]RoleConfig)
		}
		c.Roles[name] = rc
	}

	if other.Workflow.MaxIterations != 0 {
		c.Workflow.MaxIterations = other.Workflow.MaxIterations
	}
	if other.Workflow.MaxTokens != 0 {
		c.Workflow.MaxTokens = other.Workflow.MaxTokens
	}
	if other.Workflow.FormatRetries != 0 {
		c.Workflow.FormatRetries = other.Workflow.FormatRetries
	}
	if other.Workflow.IntegrityGate != nil {
		c.Workflow.IntegrityGate = other.Workflow.IntegrityGate
	}

	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.ProxyURL != "" {
		c.LLM.ProxyURL = other.LLM.ProxyURL
	}
	if other.LLM.RequestsPerSecond != 0 {
		c.LLM.RequestsPerSecond = other.LLM.RequestsPerSecond
	}
	if other.LLM.Burst != 0 {
		c.LLM.Burst = other.LLM.Burst
	}
	if other.LLM.Temperature != nil {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.Retry.MaxAttempts != 0 {
		c.LLM.Retry.MaxAttempts = other.LLM.Retry.MaxAttempts
	}
	if other.LLM.Retry.BackoffBase != 0 {
		c.LLM.Retry.BackoffBase = other.LLM.Retry.BackoffBase
	}
	if other.LLM.Retry.BackoffMultiplier != 0 {
		c.LLM.Retry.BackoffMultiplier = other.LLM.Retry.BackoffMultiplier
	}
	if other.LLM.Retry.MaxBackoff != 0 {
		c.LLM.Retry.MaxBackoff = other.LLM.Retry.MaxBackoff
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.OutputDir != "" {
		c.Store.OutputDir = other.Store.OutputDir
	}

	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.Metrics != nil {
		c.Server.Metrics = other.Server.Metrics
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.Patterns) > 0 {
		c.Watch.Patterns = other.Watch.Patterns
	}
}

func mergeModels(dst, src *model.RegistryConfig) {
	for k, v := range src.Capabilities {
		if dst.Capabilities == nil {
			dst.Capabilities = make(map[string]*model.CapabilityConfig)
		}
		dst.Capabilities[k] = v
	}
	for k, v := range src.Endpoints {
		if dst.Endpoints == nil {
			dst.Endpoints = make(map[string]*model.EndpointConfig)
		}
		dst.Endpoints[k] = v
	}
	if src.Defaults != nil && src.Defaults.Model != "" {
		dst.Defaults = src.Defaults
	}
}
