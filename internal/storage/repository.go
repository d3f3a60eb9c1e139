package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	DefaultCheckIntervalSeconds = 60
	MinCheckIntervalSeconds     = 30
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS youtube_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			notification_channel_id VARCHAR(20) NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			mention_role_id VARCHAR(20) NOT NULL DEFAULT '',
			message_template TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS youtube_channels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id VARCHAR(20) NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			channel_title TEXT NOT NULL DEFAULT '',
			last_video_id VARCHAR(64) NOT NULL DEFAULT '',
			last_checked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(guild_id, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS twitch_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0,
			notification_channel_id VARCHAR(20) NOT NULL DEFAULT '',
			check_interval_seconds INTEGER NOT NULL DEFAULT 60,
			message_template TEXT NOT NULL DEFAULT '',
			mention_everyone INTEGER NOT NULL DEFAULT 0,
			mention_role_id VARCHAR(20) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS twitch_streamers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id VARCHAR(20) NOT NULL,
			login VARCHAR(25) NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			mention_role_id VARCHAR(20) NOT NULL DEFAULT '',
			message_template TEXT NOT NULL DEFAULT '',
			is_live INTEGER NOT NULL DEFAULT 0,
			stream_id VARCHAR(32) NOT NULL DEFAULT '',
			last_checked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(guild_id, login)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_youtube_channels_guild ON youtube_channels(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_twitch_streamers_guild ON twitch_streamers(guild_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// YouTube settings operations

// UpsertYouTubeSettings creates or updates YouTube settings of a guild
func (r *Repository) UpsertYouTubeSettings(ctx context.Context, s *YouTubeSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO youtube_settings (guild_id, notification_channel_id, enabled, mention_role_id, message_template)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			notification_channel_id = excluded.notification_channel_id,
			enabled = excluded.enabled,
			mention_role_id = excluded.mention_role_id,
			message_template = excluded.message_template`,
		s.GuildID, s.NotificationChannelID, s.Enabled, s.MentionRoleID, s.MessageTemplate,
	)
	return err
}

// GetYouTubeSettings retrieves YouTube settings, falling back to defaults for unknown guilds
func (r *Repository) GetYouTubeSettings(ctx context.Context, guildID string) (*YouTubeSettings, error) {
	s := &YouTubeSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT guild_id, notification_channel_id, enabled, mention_role_id, message_template, created_at
		 FROM youtube_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&s.GuildID, &s.NotificationChannelID, &s.Enabled, &s.MentionRoleID, &s.MessageTemplate, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &YouTubeSettings{GuildID: guildID, Enabled: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// YouTube channel operations

// AddYouTubeChannel starts tracking a channel. The channel starts unseen.
func (r *Repository) AddYouTubeChannel(ctx context.Context, c *YouTubeChannel) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO youtube_channels (guild_id, channel_id, channel_title) VALUES (?, ?, ?)
		 ON CONFLICT(guild_id, channel_id) DO NOTHING`,
		c.GuildID, c.ChannelID, c.ChannelTitle,
	)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// RemoveYouTubeChannel stops tracking a channel
func (r *Repository) RemoveYouTubeChannel(ctx context.Context, guildID, channelID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM youtube_channels WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ListYouTubeChannels returns the channels tracked by a guild
func (r *Repository) ListYouTubeChannels(ctx context.Context, guildID string) ([]*YouTubeChannel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, channel_title, last_video_id, last_checked_at, created_at
		 FROM youtube_channels WHERE guild_id = ? ORDER BY id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*YouTubeChannel
	for rows.Next() {
		c := &YouTubeChannel{}
		var checked sql.NullTime
		if err := rows.Scan(&c.ID, &c.GuildID, &c.ChannelID, &c.ChannelTitle, &c.LastVideoID, &checked, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.LastCheckedAt = nullTime(checked)
		channels = append(channels, c)
	}

	return channels, rows.Err()
}

// Twitch settings operations

// UpsertTwitchSettings creates or updates Twitch settings of a guild
func (r *Repository) UpsertTwitchSettings(ctx context.Context, s *TwitchSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO twitch_settings (guild_id, enabled, notification_channel_id, check_interval_seconds,
			message_template, mention_everyone, mention_role_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			notification_channel_id = excluded.notification_channel_id,
			check_interval_seconds = excluded.check_interval_seconds,
			message_template = excluded.message_template,
			mention_everyone = excluded.mention_everyone,
			mention_role_id = excluded.mention_role_id`,
		s.GuildID, s.Enabled, s.NotificationChannelID, s.CheckIntervalSeconds,
		s.MessageTemplate, s.MentionEveryone, s.MentionRoleID,
	)
	return err
}

// GetTwitchSettings retrieves Twitch settings, falling back to defaults for unknown guilds
func (r *Repository) GetTwitchSettings(ctx context.Context, guildID string) (*TwitchSettings, error) {
	s := &TwitchSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT guild_id, enabled, notification_channel_id, check_interval_seconds,
			message_template, mention_everyone, mention_role_id, created_at
		 FROM twitch_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&s.GuildID, &s.Enabled, &s.NotificationChannelID, &s.CheckIntervalSeconds,
		&s.MessageTemplate, &s.MentionEveryone, &s.MentionRoleID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &TwitchSettings{GuildID: guildID, CheckIntervalSeconds: DefaultCheckIntervalSeconds}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// TwitchInterval returns the shortest check interval over the guilds that are
// polled (enabled with a notification channel), or fallback when there are none.
// Never shorter than MinCheckIntervalSeconds.
func (r *Repository) TwitchInterval(ctx context.Context, fallback time.Duration) (time.Duration, error) {
	var seconds sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(check_interval_seconds) FROM twitch_settings
		 WHERE enabled = 1 AND notification_channel_id != '' AND check_interval_seconds > 0`,
	).Scan(&seconds)
	if err != nil {
		return fallback, err
	}

	interval := fallback
	if seconds.Valid {
		interval = time.Duration(seconds.Int64) * time.Second
	}
	return max(interval, MinCheckIntervalSeconds*time.Second), nil
}

// Twitch streamer operations

// AddTwitchStreamer starts tracking a login. The streamer starts unseen.
func (r *Repository) AddTwitchStreamer(ctx context.Context, s *TwitchStreamer) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO twitch_streamers (guild_id, login, display_name, mention_role_id, message_template)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, login) DO NOTHING`,
		s.GuildID, s.Login, s.DisplayName, s.MentionRoleID, s.MessageTemplate,
	)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// RemoveTwitchStreamer stops tracking a login
func (r *Repository) RemoveTwitchStreamer(ctx context.Context, guildID, login string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM twitch_streamers WHERE guild_id = ? AND login = ?`,
		guildID, login,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// GetTwitchStreamer finds a tracked login in a guild
func (r *Repository) GetTwitchStreamer(ctx context.Context, guildID, login string) (*TwitchStreamer, error) {
	s := &TwitchStreamer{}
	var checked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, guild_id, login, display_name, mention_role_id, message_template, is_live, stream_id, last_checked_at, created_at
		 FROM twitch_streamers WHERE guild_id = ? AND login = ?`,
		guildID, login,
	).Scan(&s.ID, &s.GuildID, &s.Login, &s.DisplayName, &s.MentionRoleID, &s.MessageTemplate,
		&s.IsLive, &s.StreamID, &checked, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.LastCheckedAt = nullTime(checked)
	return s, nil
}

// ListTwitchStreamers returns the logins tracked by a guild
func (r *Repository) ListTwitchStreamers(ctx context.Context, guildID string) ([]*TwitchStreamer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, login, display_name, mention_role_id, message_template, is_live, stream_id, last_checked_at, created_at
		 FROM twitch_streamers WHERE guild_id = ? ORDER BY id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streamers []*TwitchStreamer
	for rows.Next() {
		s := &TwitchStreamer{}
		var checked sql.NullTime
		if err := rows.Scan(&s.ID, &s.GuildID, &s.Login, &s.DisplayName, &s.MentionRoleID, &s.MessageTemplate,
			&s.IsLive, &s.StreamID, &checked, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.LastCheckedAt = nullTime(checked)
		streamers = append(streamers, s)
	}

	return streamers, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
