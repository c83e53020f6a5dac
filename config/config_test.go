package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Aggregation.PartialConcurrency)
	assert.Equal(t, 4, cfg.Aggregation.FinalConcurrency)
	assert.Equal(t, 0, cfg.Aggregation.DistinctLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggengine.yaml")
	content := "aggregation:\n  partial_concurrency: 8\n  distinct_limit: 1000\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("AGGENGINE_AGGREGATION_FINAL_CONCURRENCY", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Aggregation.PartialConcurrency)
	assert.Equal(t, 2, cfg.Aggregation.FinalConcurrency)
	assert.Equal(t, 1000, cfg.Aggregation.DistinctLimit)
	assert.Equal(t, "debug", cfg.Log.Level)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	t.Setenv("AGGENGINE_AGGREGATION_FINAL_CONCURRENCY", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, KeyFinalConcurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"partial concurrency", func(c *Config) { c.Aggregation.PartialConcurrency = 0 }},
		{"final concurrency", func(c *Config) { c.Aggregation.FinalConcurrency = -1 }},
		{"distinct limit", func(c *Config) { c.Aggregation.DistinctLimit = -5 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
