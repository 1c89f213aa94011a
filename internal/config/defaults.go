package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	DefaultProvider string                    `json:"default_provider"`
	SystemPrompt    string                    `json:"system_prompt"`
	Providers       map[string]ProviderConfig `json:"providers"`
	Engine          EngineConfig              `json:"engine"`
	MCPServers      map[string]string         `json:"mcp_servers"` // name -> transport spec
}

type ProviderConfig struct {
	APIKeyEnv string `json:"api_key_env"` // environment variable holding the key
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`   // empty means the provider's default endpoint
	MaxTokens int    `json:"max_tokens"` // per-response cap where the API requires one
}

type EngineConfig struct {
	TokenBudget      int `json:"token_budget"`       // context window budget for planning
	MaxToolRounds    int `json:"max_tool_rounds"`    // Default: 10
	MaxRetries       int `json:"max_retries"`        // Default: 3
	InitialBackoffMs int `json:"initial_backoff_ms"` // Default: 500
	TurnTimeoutS     int `json:"turn_timeout_s"`     // Default: 600 (10 minutes)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "anthropic",
		SystemPrompt:    "You are a helpful assistant.",
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-sonnet-4-0", MaxTokens: 4096},
			"openai":    {APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o"},
			"gemini":    {APIKeyEnv: "GEMINI_API_KEY", Model: "gemini-2.0-flash"},
		},
		Engine: EngineConfig{
			TokenBudget:      100_000,
			MaxToolRounds:    10,
			MaxRetries:       3,
			InitialBackoffMs: 500,
			TurnTimeoutS:     600,
		},
	}
}
