package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kendottv/discordbot/internal/notify"
	"github.com/kendottv/discordbot/internal/storage"
	"github.com/kendottv/discordbot/internal/twitch"
	"github.com/kendottv/discordbot/internal/watch"
)

var (
	minIntervalSeconds float64 = storage.MinCheckIntervalSeconds
	maxIntervalSeconds float64 = 3600

	twitchLoginPattern = regexp.MustCompile(`^[a-z0-9_]{3,25}$`)
)

const twitchColor = 0x9146FF

// normalizeTwitchLogin accepts a login or a channel URL and returns the lowercase login
func normalizeTwitchLogin(raw string) (string, error) {
	login := strings.ToLower(strings.TrimSpace(raw))
	login = strings.TrimPrefix(login, "https://")
	login = strings.TrimPrefix(login, "www.")
	login = strings.TrimPrefix(login, "twitch.tv/")
	login = strings.TrimPrefix(login, "@")
	login = strings.TrimSuffix(login, "/")

	if !twitchLoginPattern.MatchString(login) {
		return "", fmt.Errorf("`%s` is not a valid Twitch username", raw)
	}
	return login, nil
}

func (b *Bot) handleTwitch(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := subcommandOptions(sub)

	switch sub.Name {
	case "channel":
		b.updateTwitchSettings(s, i, func(ts *storage.TwitchSettings) string {
			ts.NotificationChannelID = opts.id("channel")
			return fmt.Sprintf("Twitch live notifications will be sent to <#%s>", ts.NotificationChannelID)
		})
	case "toggle":
		b.updateTwitchSettings(s, i, func(ts *storage.TwitchSettings) string {
			ts.Enabled = !ts.Enabled
			msg := fmt.Sprintf("Twitch notifications are now **%s**.", strings.ToLower(enabledText(ts.Enabled)))
			if ts.Enabled && ts.NotificationChannelID == "" {
				msg += "\nUse `/twitch channel` to choose where notifications are sent."
			}
			return msg
		})
	case "interval":
		b.updateTwitchSettings(s, i, func(ts *storage.TwitchSettings) string {
			ts.CheckIntervalSeconds = int(opts["seconds"].IntValue())
			return fmt.Sprintf("Streams will be checked every **%d** seconds.", ts.CheckIntervalSeconds)
		})
	case "message":
		b.updateTwitchSettings(s, i, func(ts *storage.TwitchSettings) string {
			ts.MessageTemplate = opts.string("message")
			if ts.MessageTemplate == "" {
				return "Live message reset to the default."
			}
			return fmt.Sprintf("Live message updated. Preview:\n>>> %s", notify.Render(ts.MessageTemplate, previewItem()))
		})
	case "mention":
		b.updateTwitchSettings(s, i, func(ts *storage.TwitchSettings) string {
			ts.MentionEveryone = opts["everyone"].BoolValue()
			ts.MentionRoleID = opts.id("role")
			mentions, _ := notify.Mentions(watch.Entity{MentionEveryone: ts.MentionEveryone, CollectionRoleID: ts.MentionRoleID})
			if mentions == "" {
				return "Live notifications will not mention anyone."
			}
			return fmt.Sprintf("Live notifications will mention %s.", mentions)
		})
	case "add":
		b.handleTwitchAdd(s, i, opts)
	case "remove":
		b.handleTwitchRemove(s, i, opts)
	case "list":
		b.handleTwitchList(s, i)
	case "test":
		b.handleTwitchTest(s, i, opts)
	case "debug":
		b.handleTwitchDebug(s, i)
	default:
		slog.Warn("Unknown subcommand", "command", "twitch", "subcommand", sub.Name)
	}
}

// updateTwitchSettings loads the guild settings, applies update and saves them.
// The watcher picks up interval changes before its next tick.
func (b *Bot) updateTwitchSettings(s *discordgo.Session, i *discordgo.InteractionCreate, update func(*storage.TwitchSettings) string) {
	ctx := context.Background()

	settings, err := b.repo.GetTwitchSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get Twitch settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to update settings. Please try again.")
		return
	}

	msg := update(settings)

	if err := b.repo.UpsertTwitchSettings(ctx, settings); err != nil {
		slog.Error("Failed to save Twitch settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to update settings. Please try again.")
		return
	}

	respondWithMessage(s, i, msg)
}

// handleTwitchAdd handles /twitch add
func (b *Bot) handleTwitchAdd(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	if b.twitch == nil {
		respondWithMessage(s, i, "Twitch notifications are not configured on this bot.")
		return
	}

	login, err := normalizeTwitchLogin(opts.string("username"))
	if err != nil {
		respondWithMessage(s, i, err.Error())
		return
	}

	// Respond immediately to avoid timeout
	deferResponse(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := b.twitch.GetUser(ctx, login)
	if err != nil {
		if errors.Is(err, watch.ErrNotFound) {
			b.editResponse(s, i, fmt.Sprintf("Could not find Twitch user `%s`. Please check the name and try again.", login))
			return
		}
		slog.Error("Failed to look up Twitch user", "login", login, "error", err)
		b.editResponse(s, i, "Could not reach Twitch right now. Please try again later.")
		return
	}

	err = b.repo.AddTwitchStreamer(ctx, &storage.TwitchStreamer{
		GuildID:         i.GuildID,
		Login:           user.Login,
		DisplayName:     user.DisplayName,
		MentionRoleID:   opts.id("role"),
		MessageTemplate: opts.string("message"),
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		b.editResponse(s, i, fmt.Sprintf("**%s** is already being tracked in this server.", user.DisplayName))
		return
	}
	if err != nil {
		slog.Error("Failed to save Twitch streamer", "login", login, "error", err)
		b.editResponse(s, i, "Failed to add streamer. Please try again.")
		return
	}

	msg := fmt.Sprintf("Now tracking **%s**. A stream already running at the next check will not be announced.", user.DisplayName)
	if settings, err := b.repo.GetTwitchSettings(ctx, i.GuildID); err == nil && !settings.Enabled {
		msg += "\nTwitch notifications are disabled here; use `/twitch toggle` to enable them."
	}
	b.editResponse(s, i, msg)
}

// handleTwitchRemove handles /twitch remove
func (b *Bot) handleTwitchRemove(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	login, err := normalizeTwitchLogin(opts.string("username"))
	if err != nil {
		respondWithMessage(s, i, err.Error())
		return
	}

	err = b.repo.RemoveTwitchStreamer(context.Background(), i.GuildID, login)
	if errors.Is(err, storage.ErrNotFound) {
		respondWithMessage(s, i, fmt.Sprintf("`%s` is not tracked in this server.", login))
		return
	}
	if err != nil {
		slog.Error("Failed to remove Twitch streamer", "login", login, "error", err)
		respondWithMessage(s, i, "Failed to remove streamer. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Stopped tracking `%s`.", login))
}

// handleTwitchList handles /twitch list
func (b *Bot) handleTwitchList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	streamers, err := b.repo.ListTwitchStreamers(context.Background(), i.GuildID)
	if err != nil {
		slog.Error("Failed to list Twitch streamers", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve streamer list.")
		return
	}

	if len(streamers) == 0 {
		respondWithMessage(s, i, "No Twitch streamers are tracked in this server.\nUse `/twitch add` to add one!")
		return
	}

	respondWithEmbed(s, i, twitchListEmbed(streamers))
}

func twitchListEmbed(streamers []*storage.TwitchStreamer) *discordgo.MessageEmbed {
	var sb strings.Builder
	for idx, st := range streamers {
		name := st.DisplayName
		if name == "" {
			name = st.Login
		}
		status := "⚫"
		if st.IsLive {
			status = "🔴"
		}
		fmt.Fprintf(&sb, "%d. %s [%s](%s)", idx+1, status, name, twitch.ChannelURL(st.Login))
		if st.MentionRoleID != "" {
			fmt.Fprintf(&sb, " <@&%s>", st.MentionRoleID)
		}
		sb.WriteString("\n")
	}

	return &discordgo.MessageEmbed{
		Title:       "Tracked Twitch streamers",
		Description: sb.String(),
		Color:       twitchColor,
	}
}

// handleTwitchTest handles /twitch test. It sends a real notification
// without touching the recorded state.
func (b *Bot) handleTwitchTest(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	if b.twitch == nil {
		respondWithMessage(s, i, "Twitch notifications are not configured on this bot.")
		return
	}

	login, err := normalizeTwitchLogin(opts.string("username"))
	if err != nil {
		respondWithMessage(s, i, err.Error())
		return
	}

	deferResponse(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	settings, err := b.repo.GetTwitchSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get Twitch settings", "guildID", i.GuildID, "error", err)
		b.editResponse(s, i, "Failed to send test notification.")
		return
	}
	if settings.NotificationChannelID == "" {
		b.editResponse(s, i, "Set a notification channel first with `/twitch channel`.")
		return
	}

	stream, err := b.twitch.GetStream(ctx, login)
	if errors.Is(err, watch.ErrNotFound) {
		b.editResponse(s, i, fmt.Sprintf("`%s` is not live right now.", login))
		return
	}
	if err != nil {
		slog.Error("Failed to get stream", "login", login, "error", err)
		b.editResponse(s, i, "Could not reach Twitch right now. Please try again later.")
		return
	}

	streamer, err := b.repo.GetTwitchStreamer(ctx, i.GuildID, login)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Failed to get tracked streamer", "login", login, "error", err)
	}

	entity := twitchEntity(settings, streamer, login)
	item := twitch.StreamItem(stream)
	if err := b.twitchSource.Enrich(ctx, entity, item); err != nil {
		slog.Warn("Failed to enrich test notification", "login", login, "error", err)
	}

	ev := watch.Event{
		Entity:     entity,
		Item:       *item,
		Transition: watch.TransitionWentLive,
		DetectedAt: time.Now(),
	}
	if err := b.notifier.Notify(ctx, ev); err != nil {
		slog.Error("Failed to send test notification", "login", login, "error", err)
		b.editResponse(s, i, "Failed to send the test notification. Check that I can post in the notification channel.")
		return
	}

	b.editResponse(s, i, fmt.Sprintf("Test notification sent to %s.", channelMention(settings.NotificationChannelID)))
}

// twitchEntity assembles the entity a notification for login would use
func twitchEntity(settings *storage.TwitchSettings, streamer *storage.TwitchStreamer, login string) watch.Entity {
	e := watch.Entity{
		Kind:             watch.KindTwitch,
		GuildID:          settings.GuildID,
		RemoteID:         login,
		ChannelID:        settings.NotificationChannelID,
		DefaultTemplate:  settings.MessageTemplate,
		CollectionRoleID: settings.MentionRoleID,
		MentionEveryone:  settings.MentionEveryone,
	}
	if streamer != nil {
		e.DisplayName = streamer.DisplayName
		e.MentionRoleID = streamer.MentionRoleID
		e.Template = streamer.MessageTemplate
	}
	return e
}

// handleTwitchDebug handles /twitch debug
func (b *Bot) handleTwitchDebug(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	settings, err := b.repo.GetTwitchSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get Twitch settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve debug information.")
		return
	}
	streamers, err := b.repo.ListTwitchStreamers(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to list Twitch streamers", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve debug information.")
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Notifications", Value: enabledText(settings.Enabled), Inline: true},
		{Name: "Channel", Value: channelMention(settings.NotificationChannelID), Inline: true},
		{Name: "Check interval", Value: fmt.Sprintf("%d s", settings.CheckIntervalSeconds), Inline: true},
		{Name: "Tracked", Value: fmt.Sprintf("%d", len(streamers)), Inline: true},
		{Name: "Client ID / secret", Value: configuredText(b.config.TwitchEnabled()), Inline: true},
	}
	if b.twitch != nil {
		fields = append(fields, tokenFields(b.twitch.Tokens().Status())...)
	}
	fields = append(fields, b.watcherFields(watch.KindTwitch)...)

	respondWithEmbed(s, i, &discordgo.MessageEmbed{
		Title:  "Twitch debug",
		Color:  twitchColor,
		Fields: fields,
	})
}

func tokenFields(st twitch.TokenStatus) []*discordgo.MessageEmbedField {
	token := "❌ None"
	if st.Valid {
		token = fmt.Sprintf("✅ Valid (`%s`)", st.Masked)
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Access token", Value: token, Inline: true},
	}
	if !st.ExpiresAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Token expires", Value: fmt.Sprintf("<t:%d:R>", st.ExpiresAt.Unix()), Inline: true,
		})
	}
	if st.LastError != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Last token error", Value: "Token request failed, see logs"})
	}
	return fields
}

// watcherFields describes the background watcher of a kind
func (b *Bot) watcherFields(kind watch.Kind) []*discordgo.MessageEmbedField {
	w, err := b.registry.Get(kind)
	if err != nil {
		return []*discordgo.MessageEmbedField{{Name: "Watcher", Value: "Not configured", Inline: true}}
	}
	return statusFields(w.Status())
}

func statusFields(st watch.Status) []*discordgo.MessageEmbedField {
	state := "⏹️ Stopped"
	switch {
	case st.Cycling:
		state = "🔄 Checking"
	case st.Running:
		state = "✅ Running"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Watcher", Value: state, Inline: true},
	}
	if st.Interval > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Poll interval", Value: st.Interval.String(), Inline: true})
	}

	last := st.LastCycle
	if !last.StartedAt.IsZero() {
		value := fmt.Sprintf("<t:%d:R>: %d checked, %d notified, %d failed",
			last.StartedAt.Unix(), last.Entities, last.Notified, last.Failed)
		if last.Err != nil {
			value += " (cycle skipped, see logs)"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Last cycle", Value: value})
	}
	return fields
}

func previewItem() watch.Item {
	return watch.Item{
		DisplayName: "Streamer",
		Login:       "streamer",
		Title:       "Stream title",
		Category:    "Just Chatting",
		Viewers:     123,
		URL:         twitch.ChannelURL("streamer"),
	}
}

func channelMention(id string) string {
	if id == "" {
		return "Not set"
	}
	return fmt.Sprintf("<#%s>", id)
}

func enabledText(enabled bool) string {
	if enabled {
		return "Enabled"
	}
	return "Disabled"
}

func configuredText(ok bool) string {
	if ok {
		return "✅ Configured"
	}
	return "❌ Missing"
}
