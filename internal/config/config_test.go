package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, 50, cfg.InitHistory)
	assert.Equal(t, 500, cfg.MaxTextLength)
	assert.Equal(t, 200, cfg.MaxCaptionLength)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxMessageBytes)
	assert.Equal(t, 5*time.Minute, cfg.GracePeriod)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HISTORY_LIMIT", "200")
	t.Setenv("GRACE_PERIOD", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"history too small", func(c *Config) { c.HistoryLimit = 10 }},
		{"history too large", func(c *Config) { c.HistoryLimit = 500 }},
		{"init larger than history", func(c *Config) { c.InitHistory = 150 }},
		{"text too long", func(c *Config) { c.MaxTextLength = 5000 }},
		{"zero grace", func(c *Config) { c.GracePeriod = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"empty port", func(c *Config) { c.Port = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := validConfig()

	cfg.ApplyFlags(Flags{})
	assert.Equal(t, "3000", cfg.Port)

	cfg.ApplyFlags(Flags{Port: "4000"})
	assert.Equal(t, "4000", cfg.Port)
}

func validConfig() *Config {
	return &Config{
		Port:             "3000",
		Environment:      "development",
		HistoryLimit:     100,
		InitHistory:      50,
		MaxTextLength:    500,
		MaxCaptionLength: 200,
		MaxMessageBytes:  5 * 1024 * 1024,
		GracePeriod:      5 * time.Minute,
		Timezone:         "Local",
	}
}
