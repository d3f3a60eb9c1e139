package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "data", "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_YouTubeSettings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s, err := repo.GetYouTubeSettings(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, s.Enabled, "youtube notifications default to enabled")
	assert.Empty(t, s.NotificationChannelID)

	s.NotificationChannelID = "c1"
	s.MentionRoleID = "r1"
	require.NoError(t, repo.UpsertYouTubeSettings(ctx, s))

	s.Enabled = false
	require.NoError(t, repo.UpsertYouTubeSettings(ctx, s))

	got, err := repo.GetYouTubeSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.NotificationChannelID)
	assert.Equal(t, "r1", got.MentionRoleID)
	assert.False(t, got.Enabled)
}

func TestRepository_YouTubeChannels(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ch := &YouTubeChannel{GuildID: "g1", ChannelID: "UC1", ChannelTitle: "First"}
	require.NoError(t, repo.AddYouTubeChannel(ctx, ch))
	assert.NotZero(t, ch.ID)

	err := repo.AddYouTubeChannel(ctx, &YouTubeChannel{GuildID: "g1", ChannelID: "UC1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// the same channel may be tracked by another guild
	require.NoError(t, repo.AddYouTubeChannel(ctx, &YouTubeChannel{GuildID: "g2", ChannelID: "UC1"}))
	require.NoError(t, repo.AddYouTubeChannel(ctx, &YouTubeChannel{GuildID: "g1", ChannelID: "UC2", ChannelTitle: "Second"}))

	list, err := repo.ListYouTubeChannels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "UC1", list[0].ChannelID)
	assert.Nil(t, list[0].LastCheckedAt, "new channels start unseen")

	require.NoError(t, repo.RemoveYouTubeChannel(ctx, "g1", "UC1"))
	assert.ErrorIs(t, repo.RemoveYouTubeChannel(ctx, "g1", "UC1"), ErrNotFound)

	list, err = repo.ListYouTubeChannels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "UC2", list[0].ChannelID)
}

func TestRepository_TwitchSettings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s, err := repo.GetTwitchSettings(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, s.Enabled, "twitch notifications default to disabled")
	assert.Equal(t, DefaultCheckIntervalSeconds, s.CheckIntervalSeconds)

	s.Enabled = true
	s.NotificationChannelID = "c1"
	s.CheckIntervalSeconds = 120
	s.MentionEveryone = true
	s.MessageTemplate = "{streamer} is live"
	require.NoError(t, repo.UpsertTwitchSettings(ctx, s))

	got, err := repo.GetTwitchSettings(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.True(t, got.MentionEveryone)
	assert.Equal(t, 120, got.CheckIntervalSeconds)
	assert.Equal(t, "{streamer} is live", got.MessageTemplate)
}

func TestRepository_TwitchStreamers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := &TwitchStreamer{GuildID: "g1", Login: "streamer", DisplayName: "Streamer", MentionRoleID: "r9"}
	require.NoError(t, repo.AddTwitchStreamer(ctx, s))
	assert.ErrorIs(t, repo.AddTwitchStreamer(ctx, &TwitchStreamer{GuildID: "g1", Login: "streamer"}), ErrAlreadyExists)

	got, err := repo.GetTwitchStreamer(ctx, "g1", "streamer")
	require.NoError(t, err)
	assert.Equal(t, "Streamer", got.DisplayName)
	assert.Equal(t, "r9", got.MentionRoleID)
	assert.False(t, got.IsLive)
	assert.Nil(t, got.LastCheckedAt)

	_, err = repo.GetTwitchStreamer(ctx, "g1", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.ListTwitchStreamers(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.RemoveTwitchStreamer(ctx, "g1", "streamer"))
	assert.ErrorIs(t, repo.RemoveTwitchStreamer(ctx, "g1", "streamer"), ErrNotFound)
}

func TestRepository_TwitchInterval(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	fallback := 60 * time.Second

	got, err := repo.TwitchInterval(ctx, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got, "no enabled guild uses the fallback")

	require.NoError(t, repo.UpsertTwitchSettings(ctx, &TwitchSettings{GuildID: "g1", Enabled: true, NotificationChannelID: "c1", CheckIntervalSeconds: 300}))
	require.NoError(t, repo.UpsertTwitchSettings(ctx, &TwitchSettings{GuildID: "g2", Enabled: true, NotificationChannelID: "c2", CheckIntervalSeconds: 90}))
	require.NoError(t, repo.UpsertTwitchSettings(ctx, &TwitchSettings{GuildID: "g3", Enabled: false, NotificationChannelID: "c3", CheckIntervalSeconds: 45}))
	// enabled but never polled without a destination
	require.NoError(t, repo.UpsertTwitchSettings(ctx, &TwitchSettings{GuildID: "g5", Enabled: true, CheckIntervalSeconds: 40}))

	got, err = repo.TwitchInterval(ctx, fallback)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, got)

	require.NoError(t, repo.UpsertTwitchSettings(ctx, &TwitchSettings{GuildID: "g4", Enabled: true, NotificationChannelID: "c4", CheckIntervalSeconds: 5}))
	got, err = repo.TwitchInterval(ctx, fallback)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got, "interval is floored")
}
