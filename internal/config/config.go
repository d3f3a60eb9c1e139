package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// YouTube Data API
	YouTubeAPIKey string

	// Twitch app credentials
	TwitchClientID     string
	TwitchClientSecret string

	// Database
	DatabasePath string

	// Polling
	YouTubePollInterval time.Duration
	TwitchPollInterval  time.Duration
	FreshnessWindow     time.Duration
	EntityDelay         time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9090"
	MetricsAddr string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:       os.Getenv("DISCORD_BOT_TOKEN"),
		YouTubeAPIKey:      os.Getenv("YT_API_KEY"),
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
	}

	var err error
	if cfg.YouTubePollInterval, err = getIntEnv("YOUTUBE_POLL_INTERVAL_SECONDS", 300, 1, time.Second); err != nil {
		return nil, err
	}
	if cfg.TwitchPollInterval, err = getIntEnv("TWITCH_POLL_INTERVAL_SECONDS", 60, 30, time.Second); err != nil {
		return nil, err
	}
	if cfg.FreshnessWindow, err = getIntEnv("FRESHNESS_WINDOW_HOURS", 24, 1, time.Hour); err != nil {
		return nil, err
	}
	if cfg.EntityDelay, err = getIntEnv("ENTITY_DELAY_MS", 500, 0, time.Millisecond); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", cfg.LogFormat)
	}

	return cfg, nil
}

// YouTubeEnabled reports whether the YouTube watcher can run
func (c *Config) YouTubeEnabled() bool {
	return c.YouTubeAPIKey != ""
}

// TwitchEnabled reports whether the Twitch watcher can run
func (c *Config) TwitchEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv parses an integer variable and scales it by unit
func getIntEnv(key string, defaultValue, minValue int, unit time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < minValue {
		return 0, fmt.Errorf("invalid %s: must be at least %d", key, minValue)
	}
	return time.Duration(n) * unit, nil
}
