package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "api", cfg.Source.Kind)
	assert.Equal(t, 100*time.Millisecond, cfg.View.FitDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.View.InitFitDelay)
	assert.Equal(t, 0.3, cfg.View.FitPadding)
	assert.Equal(t, 0.4, cfg.View.InitFitPadding)
	assert.Equal(t, "#2563eb", cfg.View.Palette.Central)
	assert.Equal(t, "#94a3b8", cfg.View.Palette.EdgeLabel)
	assert.Equal(t, 12.0, cfg.View.Palette.EdgeLabelSize)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	v := viper.New()
	require.NoError(t, Configure(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Same(t, cfg, Get())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perplexia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  format: json
source:
  kind: postgres
  database_url: postgres://localhost/perplexia
view:
  fit_delay: 250ms
  palette:
    central: "#ff0000"
`), 0o644))

	v := viper.New()
	require.NoError(t, Configure(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "postgres", cfg.Source.Kind)
	assert.Equal(t, 250*time.Millisecond, cfg.View.FitDelay)
	assert.Equal(t, "#ff0000", cfg.View.Palette.Central)
	assert.Equal(t, "#0891b2", cfg.View.Palette.Topic)
	assert.Equal(t, 200*time.Millisecond, cfg.View.InitFitDelay)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PERPLEXIA_TOKEN", "s3cret")
	t.Setenv("PERPLEXIA_SERVER_ADDR", ":9999")

	v := viper.New()
	require.NoError(t, Configure(v, ""))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Backend.Token)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perplexia.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [unclosed"), 0o644))

	err := Configure(viper.New(), path)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }, "unknown source.kind"},
		{"postgres without url", func(c *Config) { c.Source.Kind = "postgres" }, "database_url"},
		{"file without dir", func(c *Config) { c.Source.Kind = "file" }, "source.dir"},
		{"api without url", func(c *Config) { c.Backend.URL = "" }, "backend.url"},
		{"negative rate", func(c *Config) { c.Backend.RateLimit = -1 }, "rate_limit"},
		{"negative padding", func(c *Config) { c.View.FitPadding = -0.1 }, "padding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
