package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	DiscordToken string
	DatabaseDSN  string

	// LevelChannelID receives level-up announcements. Empty means the
	// guild's system channel.
	LevelChannelID string

	// InviteLogChannelID receives join/invite notifications. Empty means
	// the guild's system channel.
	InviteLogChannelID string

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string

	LogLevel  string
	LogFormat string

	GrantInterval time.Duration
	ChatXPAward   int64
	VoiceXPAward  int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// .env file is optional, continue with environment variables
	}

	config := &Config{
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		LevelChannelID:     os.Getenv("LEVEL_CHANNEL_ID"),
		InviteLogChannelID: os.Getenv("INVITE_LOG_CHANNEL_ID"),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "console"),
		GrantInterval:      time.Minute,
		ChatXPAward:        100,
		VoiceXPAward:       100,
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	if config.DatabaseDSN == "" {
		return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
	}

	if raw := os.Getenv("GRANT_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return nil, &ConfigError{Field: "GRANT_INTERVAL", Message: fmt.Sprintf("GRANT_INTERVAL %q is not a positive duration", raw)}
		}
		config.GrantInterval = interval
	}

	var err error
	if config.ChatXPAward, err = envInt64("CHAT_XP_AWARD", config.ChatXPAward); err != nil {
		return nil, err
	}
	if config.VoiceXPAward, err = envInt64("VOICE_XP_AWARD", config.VoiceXPAward); err != nil {
		return nil, err
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("%s %q is not a positive integer", key, raw)}
	}
	return v, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
