package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/config"
	"github.com/jonathan/mapping-testgen/internal/generator"
)

func TestBuildGenerator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GeneratorConfig
		want    string
		wantErr string
	}{
		{name: "template", cfg: config.GeneratorConfig{Name: "template", APIKey: "ignored"}, want: generator.NameTemplate},
		{name: "auto without key", cfg: config.GeneratorConfig{Name: "auto"}, want: generator.NameTemplate},
		{name: "llm without key", cfg: config.GeneratorConfig{Name: "llm"}, wantErr: "GEMINI_API_KEY"},
		{name: "unknown", cfg: config.GeneratorConfig{Name: "oracle"}, wantErr: "unknown generator"},
		{name: "unknown tier", cfg: config.GeneratorConfig{Name: "template", Tier: "huge"}, wantErr: "unknown model tier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, closeGen, err := buildGenerator(context.Background(), tt.cfg, zap.NewNop())
			require.NotNil(t, closeGen)
			defer closeGen()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, gen.Name())
		})
	}
}
