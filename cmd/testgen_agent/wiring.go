package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/config"
	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/llm"
)

// buildGenerator resolves the configured generator. The returned close func
// releases the LLM client, if one was created.
func buildGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *zap.Logger) (generator.Generator, func(), error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	noop := func() {}

	tier, err := llm.ParseTier(cfg.Tier)
	if err != nil {
		return nil, noop, err
	}

	var client llm.Client
	if cfg.APIKey != "" && name != generator.NameTemplate {
		llmCfg := llm.DefaultConfig()
		if cfg.Model != "" {
			llmCfg = llmCfg.WithModel(tier, cfg.Model)
		}
		if cfg.Timeout > 0 {
			llmCfg.Timeout = cfg.Timeout
		}
		c, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create LLM client: %w", err)
		}
		client = c
	}

	gen, err := generator.Select(name, client, logger)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, noop, err
	}
	if g, ok := gen.(*generator.LLM); ok {
		gen = g.WithTier(tier)
	}
	logger.Info("generator selected", zap.String("generator", gen.Name()), zap.String("tier", string(tier)))

	if client == nil {
		return gen, noop, nil
	}
	return gen, func() { _ = client.Close() }, nil
}
