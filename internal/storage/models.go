package storage

import "time"

// YouTubeSettings stores per-server YouTube notification configuration
type YouTubeSettings struct {
	GuildID               string
	NotificationChannelID string
	Enabled               bool
	MentionRoleID         string
	MessageTemplate       string
	CreatedAt             time.Time
}

// YouTubeChannel is a YouTube channel tracked by a guild
type YouTubeChannel struct {
	ID           int64
	GuildID      string
	ChannelID    string
	ChannelTitle string
	LastVideoID  string
	// LastCheckedAt is nil until the first successful poll
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// TwitchSettings stores per-server Twitch notification configuration
type TwitchSettings struct {
	GuildID               string
	Enabled               bool
	NotificationChannelID string
	CheckIntervalSeconds  int
	MessageTemplate       string
	MentionEveryone       bool
	MentionRoleID         string
	CreatedAt             time.Time
}

// TwitchStreamer is a Twitch login tracked by a guild
type TwitchStreamer struct {
	ID              int64
	GuildID         string
	Login           string
	DisplayName     string
	MentionRoleID   string
	MessageTemplate string
	IsLive          bool
	StreamID        string
	// LastCheckedAt is nil until the first successful poll
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}
