package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// checks that every limit is inside its supported range
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}

	if c.HistoryLimit < MinHistoryLimit || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("HISTORY_LIMIT must be between %d and %d, got %d", MinHistoryLimit, MaxHistoryLimit, c.HistoryLimit)
	}

	if c.InitHistory <= 0 || c.InitHistory > c.HistoryLimit {
		return fmt.Errorf("INIT_HISTORY must be between 1 and HISTORY_LIMIT (%d), got %d", c.HistoryLimit, c.InitHistory)
	}

	if c.MaxTextLength < MinTextLength || c.MaxTextLength > MaxTextLength {
		return fmt.Errorf("MAX_TEXT_LENGTH must be between %d and %d, got %d", MinTextLength, MaxTextLength, c.MaxTextLength)
	}

	if c.MaxCaptionLength <= 0 {
		return fmt.Errorf("MAX_CAPTION_LENGTH must be positive, got %d", c.MaxCaptionLength)
	}

	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}

	if c.GracePeriod <= 0 {
		return fmt.Errorf("GRACE_PERIOD must be positive, got %s", c.GracePeriod)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// resolves the configured timezone used for message timestamps
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return loc, nil
}
