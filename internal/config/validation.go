package config

import (
	"fmt"
)

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.DefaultProvider == "" {
		errs = append(errs, "default_provider must be set")
	} else if _, ok := c.Providers[c.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("default_provider %q has no providers entry", c.DefaultProvider))
	}

	for name, p := range c.Providers {
		if p.APIKeyEnv == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.api_key_env must be set", name))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.model must be set", name))
		}
		if p.MaxTokens < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.max_tokens must be >= 0", name))
		}
	}

	if c.Engine.TokenBudget < 1 {
		errs = append(errs, "engine.token_budget must be >= 1")
	}
	if c.Engine.MaxToolRounds < 1 {
		errs = append(errs, "engine.max_tool_rounds must be >= 1")
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, "engine.max_retries must be >= 0")
	}
	if c.Engine.InitialBackoffMs < 1 {
		errs = append(errs, "engine.initial_backoff_ms must be >= 1")
	}
	if c.Engine.TurnTimeoutS < 1 {
		errs = append(errs, "engine.turn_timeout_s must be >= 1")
	}

	for name, spec := range c.MCPServers {
		if spec == "" {
			errs = append(errs, fmt.Sprintf("mcp_servers.%s must not be empty", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
