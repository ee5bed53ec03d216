package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-analyzer/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []int{5, 20, 50, 60}, cfg.Analysis.MAWindows)
	assert.Equal(t, 0.03, cfg.Analysis.RiskFreeRate)
	assert.Equal(t, 252, cfg.Analysis.TradingDays)
	assert.Equal(t, 5, cfg.Prediction.Horizon)
	assert.Equal(t, 5, cfg.Prediction.Folds)
	assert.Equal(t, []string{"gbrt", "xgboost", "lightgbm"}, cfg.Prediction.Models)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_CreatesTemplates(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))
	assert.Equal(t, "synthetic", cfg.Data.Source)
	assert.Equal(t, 0.95, cfg.Analysis.Confidence)

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[analysis]
confidence = 0.9
ma_windows = [5, 20, 50, 60]

[prediction]
horizon = 3
models = ["gbrt"]

[cache]
backend = "none"
ttl = "1h"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Analysis.Confidence)
	assert.Equal(t, 3, cfg.Prediction.Horizon)
	assert.Equal(t, []string{"gbrt"}, cfg.Prediction.Models)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	// untouched keys keep their defaults
	assert.Equal(t, 252, cfg.Analysis.TradingDays)
}

func TestLoad_FileListsReplaceDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
[analysis]
ma_windows = [5, 20]

[prediction]
models = ["lightgbm"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 20}, cfg.Analysis.MAWindows)
	assert.Equal(t, []string{"lightgbm"}, cfg.Prediction.Models)
	assert.True(t, cfg.Prediction.Enabled)
	assert.Equal(t, 5, cfg.Prediction.Horizon)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KITE_API_KEY", "kite-key")
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")
	t.Setenv("ANALYZER_DATA_SOURCE", "CSV")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "kite-key", cfg.Credentials.Kite.APIKey)
	assert.Equal(t, "ds-key", cfg.Credentials.DeepSeek.APIKey)
	assert.Equal(t, "csv", cfg.Data.Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"confidence too high", func(c *Config) { c.Analysis.Confidence = 1 }, "Analysis.Confidence"},
		{"confidence zero", func(c *Config) { c.Analysis.Confidence = 0 }, "Analysis.Confidence"},
		{"non-positive window", func(c *Config) { c.Analysis.MAWindows = []int{5, 0} }, "Analysis.MAWindows[1]"},
		{"horizon below one", func(c *Config) { c.Prediction.Horizon = 0 }, "Prediction.Horizon"},
		{"single fold", func(c *Config) { c.Prediction.Folds = 1 }, "Prediction.Folds"},
		{"unknown model", func(c *Config) { c.Prediction.Models = []string{"svm"} }, "Prediction.Models[0]"},
		{"duplicate model", func(c *Config) { c.Prediction.Models = []string{"gbrt", "gbrt"} }, "Prediction.Models"},
		{"slow not above fast", func(c *Config) { c.Analysis.MACDSlow = 12 }, "Analysis.MACDSlow"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "disk" }, "Cache.Backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.ResolvePaths("/tmp/analyzer")

	assert.Equal(t, "/tmp/analyzer/cache.db", cfg.Cache.SQLitePath)
	assert.Equal(t, "/tmp/analyzer/bars.db", cfg.Data.DBPath)
}
