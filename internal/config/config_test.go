package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing.
type MockFileSystem struct {
	HomeDir     string
	HomeDirErr  error
	Files       map[string][]byte
	ReadFileErr error
}

func (m *MockFileSystem) UserHomeDir() (string, error) {
	return m.HomeDir, m.HomeDirErr
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files:   map[string][]byte{},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Equal(t, 100_000, cfg.Engine.TokenBudget)
	assert.Equal(t, 10, cfg.Engine.MaxToolRounds)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Providers["anthropic"].APIKeyEnv)
}

func TestLoad_Override_MergesWithDefaults(t *testing.T) {
	configJSON := `{
		"default_provider": "openai",
		"engine": {"token_budget": 32000, "max_tool_rounds": 5, "max_retries": 1, "initial_backoff_ms": 100, "turn_timeout_s": 60},
		"mcp_servers": {"files": "stdio://mcp-files"}
	}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/chataigne/config.json": []byte(configJSON),
		},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, 32000, cfg.Engine.TokenBudget)
	assert.Equal(t, 5, cfg.Engine.MaxToolRounds)
	assert.Equal(t, "stdio://mcp-files", cfg.MCPServers["files"])
	// Untouched sections keep defaults.
	assert.Equal(t, "gpt-4o", cfg.Providers["openai"].Model)
}

func TestLoad_HomeDirError_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{HomeDirErr: errors.New("no home")}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
}

func TestLoad_MalformedJSON_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/chataigne/config.json": []byte("{not json"),
		},
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoad_ReadPermissionError_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir:     "/home/user",
		ReadFileErr: errors.New("permission denied"),
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown default provider", func(c *Config) { c.DefaultProvider = "nope" }},
		{"missing api key env", func(c *Config) {
			p := c.Providers["openai"]
			p.APIKeyEnv = ""
			c.Providers["openai"] = p
		}},
		{"missing model", func(c *Config) {
			p := c.Providers["gemini"]
			p.Model = ""
			c.Providers["gemini"] = p
		}},
		{"zero token budget", func(c *Config) { c.Engine.TokenBudget = 0 }},
		{"zero tool rounds", func(c *Config) { c.Engine.MaxToolRounds = 0 }},
		{"negative retries", func(c *Config) { c.Engine.MaxRetries = -1 }},
		{"empty mcp spec", func(c *Config) { c.MCPServers = map[string]string{"files": ""} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
