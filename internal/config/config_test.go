package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	for _, key := range []string{"YT_API_KEY", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET", "DATABASE_PATH",
		"YOUTUBE_POLL_INTERVAL_SECONDS", "TWITCH_POLL_INTERVAL_SECONDS", "FRESHNESS_WINDOW_HOURS",
		"ENTITY_DELAY_MS", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/bot.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.YouTubePollInterval)
	assert.Equal(t, time.Minute, cfg.TwitchPollInterval)
	assert.Equal(t, 24*time.Hour, cfg.FreshnessWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.EntityDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.YouTubeEnabled())
	assert.False(t, cfg.TwitchEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("YT_API_KEY", "yt-key")
	t.Setenv("TWITCH_CLIENT_ID", "id")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_POLL_INTERVAL_SECONDS", "120")
	t.Setenv("TWITCH_POLL_INTERVAL_SECONDS", "45")
	t.Setenv("FRESHNESS_WINDOW_HOURS", "12")
	t.Setenv("ENTITY_DELAY_MS", "0")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.YouTubeEnabled())
	assert.True(t, cfg.TwitchEnabled())
	assert.Equal(t, 2*time.Minute, cfg.YouTubePollInterval)
	assert.Equal(t, 45*time.Second, cfg.TwitchPollInterval)
	assert.Equal(t, 12*time.Hour, cfg.FreshnessWindow)
	assert.Zero(t, cfg.EntityDelay)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing discord token", env: map[string]string{"DISCORD_BOT_TOKEN": ""}},
		{name: "non-numeric interval", env: map[string]string{"YOUTUBE_POLL_INTERVAL_SECONDS": "soon"}},
		{name: "twitch interval below floor", env: map[string]string{"TWITCH_POLL_INTERVAL_SECONDS": "10"}},
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DISCORD_BOT_TOKEN", "token")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
