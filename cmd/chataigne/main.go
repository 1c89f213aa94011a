// Package main wires the chataigne terminal chat client: configuration,
// provider adapters, the tool registry, one session, and the TUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/chataigne-ai/chataigne/internal/config"
	"github.com/chataigne-ai/chataigne/internal/orchestrator"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/provider/anthropic"
	"github.com/chataigne-ai/chataigne/internal/provider/gemini"
	"github.com/chataigne-ai/chataigne/internal/provider/openai"
	"github.com/chataigne-ai/chataigne/internal/session"
	"github.com/chataigne-ai/chataigne/internal/tool"
	"github.com/chataigne-ai/chataigne/internal/tool/builtin"
	"github.com/chataigne-ai/chataigne/internal/tool/mcp"
	"github.com/chataigne-ai/chataigne/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chataigne: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	providerFlag := flag.String("provider", "", "override the configured default provider")
	flag.Parse()

	log := newLogger()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *providerFlag != "" {
		cfg.DefaultProvider = *providerFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	adapters, err := buildAdapters(ctx, cfg)
	if err != nil {
		return err
	}

	registry, closers, err := buildRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, close := range closers {
			_ = close()
		}
	}()

	sess, err := session.New(adapters, cfg.DefaultProvider, registry, orchestrator.Config{
		SystemPrompt:    cfg.SystemPrompt,
		TokenBudget:     cfg.Engine.TokenBudget,
		MaxToolRounds:   cfg.Engine.MaxToolRounds,
		MaxRetries:      cfg.Engine.MaxRetries,
		InitialBackoff:  time.Duration(cfg.Engine.InitialBackoffMs) * time.Millisecond,
		MaxTurnDuration: time.Duration(cfg.Engine.TurnTimeoutS) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	manager := session.NewManager()
	if err := manager.Add(sess); err != nil {
		return err
	}
	defer func() { _ = manager.Evict(sess.ID()) }()

	return ui.New(sess).Start()
}

// newLogger writes structured logs to stderr so they never interleave
// with the TUI on stdout.
func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
}

// buildAdapters constructs one adapter per configured provider whose
// API key is present. Providers without a key are skipped so a single
// exported key is enough to start.
func buildAdapters(ctx context.Context, cfg *config.Config) (map[string]provider.Adapter, error) {
	adapters := make(map[string]provider.Adapter)
	for name, pc := range cfg.Providers {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			continue
		}

		var (
			adapter provider.Adapter
			err     error
		)
		switch name {
		case "anthropic":
			adapter, err = anthropic.New(anthropic.Config{
				APIKey:    apiKey,
				Model:     pc.Model,
				BaseURL:   pc.BaseURL,
				MaxTokens: pc.MaxTokens,
			})
		case "openai":
			adapter, err = openai.New(openai.Config{
				APIKey:  apiKey,
				Model:   pc.Model,
				BaseURL: pc.BaseURL,
			})
		case "gemini":
			adapter, err = gemini.New(ctx, gemini.Config{APIKey: apiKey, Model: pc.Model})
		default:
			return nil, fmt.Errorf("unknown provider %q in config", name)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		adapters[name] = adapter
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no provider API key found; export one of the configured key variables")
	}
	if _, ok := adapters[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q has no API key; export %s or change default_provider",
			cfg.DefaultProvider, cfg.Providers[cfg.DefaultProvider].APIKeyEnv)
	}
	return adapters, nil
}

// buildRegistry registers the builtin tools and any configured MCP
// servers. Returned closers shut the MCP sessions down.
func buildRegistry(ctx context.Context, cfg *config.Config, log *slog.Logger) (*tool.Registry, []func() error, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace: %w", err)
	}
	registry, err := tool.NewRegistry(builtin.Add(), builtin.CurrentTime(nil), builtin.ListFiles(workspace))
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	for name, spec := range cfg.MCPServers {
		server, err := mcp.Dial(ctx, name, spec)
		if err != nil {
			log.Warn("skipping mcp server", "name", name, "error", err)
			continue
		}
		closers = append(closers, server.Close)

		defs, err := server.Tools(ctx)
		if err != nil {
			log.Warn("skipping mcp server", "name", name, "error", err)
			continue
		}
		for _, def := range defs {
			if err := registry.Register(def); err != nil {
				return nil, closers, fmt.Errorf("mcp %s: %w", name, err)
			}
		}
		log.Info("registered mcp tools", "server", name, "count", len(defs))
	}

	return registry, closers, nil
}
