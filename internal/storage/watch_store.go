package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kendottv/discordbot/internal/watch"
)

// Entities returns the tracked entities of every enabled guild that has a
// notification channel, with their last recorded state
func (r *Repository) Entities(ctx context.Context, kind watch.Kind) ([]watch.Entity, error) {
	switch kind {
	case watch.KindYouTube:
		return r.youTubeEntities(ctx)
	case watch.KindTwitch:
		return r.twitchEntities(ctx)
	default:
		return nil, fmt.Errorf("unknown watch kind: %s", kind)
	}
}

// SaveState replaces the recorded state of one entity
func (r *Repository) SaveState(ctx context.Context, e watch.Entity, s watch.State) error {
	var err error
	switch e.Kind {
	case watch.KindYouTube:
		_, err = r.db.ExecContext(ctx,
			`UPDATE youtube_channels SET last_video_id = ?, last_checked_at = ? WHERE guild_id = ? AND channel_id = ?`,
			s.Fingerprint, s.CheckedAt.UTC(), e.GuildID, e.RemoteID,
		)
	case watch.KindTwitch:
		_, err = r.db.ExecContext(ctx,
			`UPDATE twitch_streamers SET is_live = ?, stream_id = ?, last_checked_at = ? WHERE guild_id = ? AND login = ?`,
			s.Active, s.Fingerprint, s.CheckedAt.UTC(), e.GuildID, e.RemoteID,
		)
	default:
		return fmt.Errorf("unknown watch kind: %s", e.Kind)
	}
	return err
}

func (r *Repository) youTubeEntities(ctx context.Context) ([]watch.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.guild_id, c.channel_id, c.channel_title, c.last_video_id, c.last_checked_at,
			s.notification_channel_id, s.mention_role_id, s.message_template
		 FROM youtube_channels c
		 JOIN youtube_settings s ON s.guild_id = c.guild_id
		 WHERE s.enabled = 1 AND s.notification_channel_id != ''
		 ORDER BY c.guild_id, c.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []watch.Entity
	for rows.Next() {
		e := watch.Entity{Kind: watch.KindYouTube}
		var lastVideoID string
		var checked sql.NullTime
		if err := rows.Scan(&e.GuildID, &e.RemoteID, &e.DisplayName, &lastVideoID, &checked,
			&e.ChannelID, &e.CollectionRoleID, &e.DefaultTemplate); err != nil {
			return nil, err
		}
		if checked.Valid {
			e.State = &watch.State{Fingerprint: lastVideoID, CheckedAt: checked.Time}
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

func (r *Repository) twitchEntities(ctx context.Context) ([]watch.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.guild_id, t.login, t.display_name, t.mention_role_id, t.message_template,
			t.is_live, t.stream_id, t.last_checked_at,
			s.notification_channel_id, s.message_template, s.mention_everyone, s.mention_role_id
		 FROM twitch_streamers t
		 JOIN twitch_settings s ON s.guild_id = t.guild_id
		 WHERE s.enabled = 1 AND s.notification_channel_id != ''
		 ORDER BY t.guild_id, t.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []watch.Entity
	for rows.Next() {
		e := watch.Entity{Kind: watch.KindTwitch}
		var isLive bool
		var streamID string
		var checked sql.NullTime
		if err := rows.Scan(&e.GuildID, &e.RemoteID, &e.DisplayName, &e.MentionRoleID, &e.Template,
			&isLive, &streamID, &checked,
			&e.ChannelID, &e.DefaultTemplate, &e.MentionEveryone, &e.CollectionRoleID); err != nil {
			return nil, err
		}
		if checked.Valid {
			e.State = &watch.State{Active: isLive, Fingerprint: streamID, CheckedAt: checked.Time}
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}
