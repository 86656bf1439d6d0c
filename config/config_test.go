package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/semmodel/agent"
	"github.com/c360studio/semmodel/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Workflow.MaxIterations)
	assert.Equal(t, 2048, cfg.Workflow.MaxTokens)
	assert.Zero(t, cfg.Workflow.FormatRetries)
	assert.True(t, cfg.IntegrityGateEnabled())
	assert.True(t, cfg.MetricsEnabled())
	assert.Equal(t, filepath.Join(".semmodel", "runs.db"), cfg.Store.Path)
	assert.Equal(t, "semmodel", cfg.Events.SubjectPrefix)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{
			name:    "zero iterations",
			modify:  func(c *Config) { c.Workflow.MaxIterations = 0 },
			wantErr: "max_iterations",
		},
		{
			name:    "zero tokens",
			modify:  func(c *Config) { c.Workflow.MaxTokens = 0 },
			wantErr: "max_tokens",
		},
		{
			name:    "negative format retries",
			modify:  func(c *Config) { c.Workflow.FormatRetries = -1 },
			wantErr: "format_retries",
		},
		{
			name: "temperature too high",
			modify: func(c *Config) {
				temp := 2.5
				c.LLM.Temperature = &temp
			},
			wantErr: "temperature",
		},
		{
			name:    "negative rate",
			modify:  func(c *Config) { c.LLM.RequestsPerSecond = -1 },
			wantErr: "requests_per_second",
		},
		{
			name:    "missing store path",
			modify:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path",
		},
		{
			name: "nats without prefix",
			modify: func(c *Config) {
				c.Events.NATSURL = "nats://localhost:4222"
				c.Events.SubjectPrefix = ""
			},
			wantErr: "subject_prefix",
		},
		{
			name: "unknown role",
			modify: func(c *Config) {
				c.Roles = map[string]RoleConfig{"poet": {Model: "gpt-4o"}}
			},
			wantErr: "unknown role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	off := false
	temp := 0.1
	cfg.Merge(&Config{
		Models: model.RegistryConfig{
			Endpoints: map[string]*model.EndpointConfig{
				"local": {Provider: "ollama", URL: "http://localhost:11434", Model: "llama3"},
			},
			Defaults: &model.DefaultsConfig{Model: "local"},
		},
		Roles:    map[string]RoleConfig{string(agent.RoleValidator): {MaxTokens: 512}},
		Workflow: WorkflowConfig{MaxIterations: 5, IntegrityGate: &off},
		LLM:      LLMConfig{Temperature: &temp, RequestsPerSecond: 2},
		Events:   EventsConfig{NATSURL: "nats://example:4222"},
		Watch:    WatchConfig{Patterns: []string{"docs/**/*.md"}},
	})

	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	assert.Equal(t, 2048, cfg.Workflow.MaxTokens, "zero values must not override")
	assert.False(t, cfg.IntegrityGateEnabled())
	assert.Equal(t, 0.1, *cfg.LLM.Temperature)
	assert.Equal(t, 2.0, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, "nats://example:4222", cfg.Events.NATSURL)
	assert.Equal(t, "semmodel", cfg.Events.SubjectPrefix)
	assert.Equal(t, []string{"docs/**/*.md"}, cfg.Watch.Patterns)
	assert.Contains(t, cfg.Models.Endpoints, "local")
	assert.Equal(t, "local", cfg.Models.Defaults.Model)
	assert.Equal(t, 512, cfg.Roles[string(agent.RoleValidator)].MaxTokens)

	cfg.Merge(nil)
	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Workflow.MaxIterations = 7
	cfg.Watch.Debounce = 2 * time.Second

	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Workflow.MaxIterations)
	assert.Equal(t, 2*time.Second, loaded.Watch.Debounce)
	assert.True(t, loaded.IntegrityGateEnabled())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, "workflow: [not, a, map")
	_, err = LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoader_Precedence(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "docs", "reqs")
	require.NoError(t, os.MkdirAll(work, 0755))

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
workflow:
  max_iterations: 4
  max_tokens: 1000
server:
  addr: ":9000"
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
workflow:
  max_iterations: 6
watch:
  debounce: 1s
`)
	explicit := filepath.Join(t.TempDir(), "run.yaml")
	writeFile(t, explicit, `
workflow:
  integrity_gate: false
`)

	loader := NewLoader(quietLogger(), WithHomeDir(home), WithWorkDir(work))
	cfg, err := loader.Load(explicit)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workflow.MaxIterations, "project overrides user")
	assert.Equal(t, 1000, cfg.Workflow.MaxTokens, "user overrides defaults")
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.False(t, cfg.IntegrityGateEnabled(), "explicit file applies last")
	assert.Equal(t, "semmodel", cfg.Events.SubjectPrefix)
}

func TestLoader_NoFiles(t *testing.T) {
	loader := NewLoader(quietLogger(), WithHomeDir(t.TempDir()), WithWorkDir(t.TempDir()))
	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Workflow, cfg.Workflow)
}

func TestLoader_ExplicitErrors(t *testing.T) {
	loader := NewLoader(quietLogger(), WithHomeDir(t.TempDir()), WithWorkDir(t.TempDir()))

	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	writeFile(t, invalid, "llm:\n  requests_per_second: -3\n")
	_, err = loader.Load(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	loader := NewLoader(quietLogger(), WithHomeDir(home))

	path, err := loader.EnsureUserConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, UserConfigDir, UserConfigFile), path)
	assert.FileExists(t, path)

	writeFile(t, path, "workflow:\n  max_iterations: 9\n")
	_, err = loader.EnsureUserConfig()
	require.NoError(t, err)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workflow.MaxIterations, "existing file is left alone")
}

func TestRegistry_ResolvesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Endpoints = map[string]*model.EndpointConfig{
		"local": {Provider: "ollama", URL: "http://localhost:11434", Model: "llama3"},
		"pinned": {Provider: "openai", Model: "gpt-4o", APIKey: "inline", APIKeyEnv: "IGNORED"},
	}
	env := map[string]string{"OPENAI_API_KEY": "sk-test", "IGNORED": "nope"}

	r, err := cfg.Registry(func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "sk-test", r.GetEndpoint("gpt-4o").APIKey)
	assert.Empty(t, r.GetEndpoint("claude-sonnet").APIKey)
	assert.Equal(t, "inline", r.GetEndpoint("pinned").APIKey)
	assert.NotNil(t, r.GetEndpoint("local"))
}

func TestRegistry_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roles = map[string]RoleConfig{string(agent.RoleAnalyst): {Model: "nowhere"}}
	_, err := cfg.Registry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown endpoint")

	cfg = DefaultConfig()
	cfg.Models.Endpoints = map[string]*model.EndpointConfig{
		"odd": {Provider: "carrier-pigeon", Model: "coo"},
	}
	_, err = cfg.Registry(nil)
	assert.Error(t, err)
}

func TestControllerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.FormatRetries = 2
	cfg.Roles = map[string]RoleConfig{
		string(agent.RoleConstraintExpert): {Model: "qwen", MaxTokens: 4096},
		string(agent.RoleValidator):        {MaxTokens: 512},
	}

	wc := cfg.ControllerConfig()
	assert.Equal(t, 3, wc.MaxIterations)
	assert.Equal(t, 2048, wc.MaxTokens)
	assert.Equal(t, 2, wc.FormatRetries)
	assert.True(t, wc.IntegrityGate)
	assert.Equal(t, map[agent.Role]string{agent.RoleConstraintExpert: "qwen"}, wc.Models)
	assert.Equal(t, map[agent.Role]int{
		agent.RoleConstraintExpert: 4096,
		agent.RoleValidator:        512,
	}, wc.RoleMaxTokens)
}
