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

	"github.com/kendottv/discordbot/internal/storage"
	"github.com/kendottv/discordbot/internal/watch"
	"github.com/kendottv/discordbot/internal/youtube"
)

var youtubeChannelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// validateYouTubeChannelID checks the shape of a channel id before any API call
func validateYouTubeChannelID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !youtubeChannelIDPattern.MatchString(id) {
		return "", fmt.Errorf("`%s` is not a YouTube channel ID (expected `UC` followed by 22 characters)", id)
	}
	return id, nil
}

func (b *Bot) handleYouTube(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := subcommandOptions(sub)

	switch sub.Name {
	case "channel":
		b.handleYouTubeChannel(s, i, opts)
	case "add":
		b.handleYouTubeAdd(s, i, opts)
	case "remove":
		b.handleYouTubeRemove(s, i, opts)
	case "list":
		b.handleYouTubeList(s, i)
	case "toggle":
		b.handleYouTubeToggle(s, i)
	case "test":
		b.handleYouTubeTest(s, i, opts)
	case "status":
		b.handleYouTubeStatus(s, i)
	default:
		slog.Warn("Unknown subcommand", "command", "youtube", "subcommand", sub.Name)
	}
}

// handleYouTubeChannel handles /youtube channel
func (b *Bot) handleYouTubeChannel(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx := context.Background()

	settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get YouTube settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to set notification channel. Please try again.")
		return
	}

	settings.NotificationChannelID = opts.id("channel")
	if opts.has("role") {
		settings.MentionRoleID = opts.id("role")
	}
	if opts.has("message") {
		settings.MessageTemplate = opts.string("message")
	}

	if err := b.repo.UpsertYouTubeSettings(ctx, settings); err != nil {
		slog.Error("Failed to save YouTube settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to set notification channel. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("YouTube upload notifications will be sent to <#%s>", settings.NotificationChannelID))
}

// handleYouTubeAdd handles /youtube add
func (b *Bot) handleYouTubeAdd(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	if b.youtube == nil {
		respondWithMessage(s, i, "YouTube notifications are not configured on this bot.")
		return
	}

	channelID, err := validateYouTubeChannelID(opts.string("channel_id"))
	if err != nil {
		respondWithMessage(s, i, err.Error())
		return
	}

	// Respond immediately to avoid timeout
	deferResponse(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := b.youtube.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, watch.ErrNotFound) {
			b.editResponse(s, i, fmt.Sprintf("Could not find YouTube channel `%s`. Please check the ID and try again.", channelID))
			return
		}
		slog.Error("Failed to look up YouTube channel", "channelID", channelID, "error", err)
		b.editResponse(s, i, "Could not reach YouTube right now. Please try again later.")
		return
	}

	err = b.repo.AddYouTubeChannel(ctx, &storage.YouTubeChannel{
		GuildID:      i.GuildID,
		ChannelID:    channelID,
		ChannelTitle: info.Title,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		b.editResponse(s, i, fmt.Sprintf("**%s** is already being tracked in this server.", info.Title))
		return
	}
	if err != nil {
		slog.Error("Failed to save YouTube channel", "channelID", channelID, "error", err)
		b.editResponse(s, i, "Failed to add channel. Please try again.")
		return
	}

	msg := fmt.Sprintf("Now tracking **%s** (`%s`). Only uploads published after the next check will be announced.", info.Title, channelID)
	if settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID); err == nil && settings.NotificationChannelID == "" {
		msg += "\nUse `/youtube channel` to choose where notifications are sent."
	}
	b.editResponse(s, i, msg)
}

// handleYouTubeRemove handles /youtube remove
func (b *Bot) handleYouTubeRemove(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	channelID := strings.TrimSpace(opts.string("channel_id"))

	err := b.repo.RemoveYouTubeChannel(context.Background(), i.GuildID, channelID)
	if errors.Is(err, storage.ErrNotFound) {
		respondWithMessage(s, i, fmt.Sprintf("Channel `%s` is not tracked in this server.", channelID))
		return
	}
	if err != nil {
		slog.Error("Failed to remove YouTube channel", "channelID", channelID, "error", err)
		respondWithMessage(s, i, "Failed to remove channel. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Stopped tracking `%s`.", channelID))
}

// handleYouTubeList handles /youtube list
func (b *Bot) handleYouTubeList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	channels, err := b.repo.ListYouTubeChannels(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to list YouTube channels", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve channel list.")
		return
	}

	if len(channels) == 0 {
		respondWithMessage(s, i, "No YouTube channels are tracked in this server.\nUse `/youtube add` to add one!")
		return
	}

	settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get YouTube settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve channel list.")
		return
	}

	respondWithEmbed(s, i, youTubeListEmbed(settings, channels))
}

func youTubeListEmbed(settings *storage.YouTubeSettings, channels []*storage.YouTubeChannel) *discordgo.MessageEmbed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Notification channel**: %s\n\n**Tracked channels**:\n", channelMention(settings.NotificationChannelID))
	for idx, c := range channels {
		title := c.ChannelTitle
		if title == "" {
			title = c.ChannelID
		}
		fmt.Fprintf(&sb, "%d. %s (`%s`)\n", idx+1, title, c.ChannelID)
	}

	return &discordgo.MessageEmbed{
		Title:       "YouTube notifications",
		Description: sb.String(),
		Color:       0xFF0000,
		Footer: &discordgo.MessageEmbedFooter{
			Text: enabledText(settings.Enabled),
		},
	}
}

// handleYouTubeToggle handles /youtube toggle
func (b *Bot) handleYouTubeToggle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID)
	if err == nil {
		settings.Enabled = !settings.Enabled
		err = b.repo.UpsertYouTubeSettings(ctx, settings)
	}
	if err != nil {
		slog.Error("Failed to toggle YouTube notifications", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to update settings. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("YouTube notifications are now **%s**.", strings.ToLower(enabledText(settings.Enabled))))
}

// handleYouTubeTest handles /youtube test. It sends a real notification
// without touching the recorded state.
func (b *Bot) handleYouTubeTest(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	if b.youtube == nil {
		respondWithMessage(s, i, "YouTube notifications are not configured on this bot.")
		return
	}

	channelID, err := validateYouTubeChannelID(opts.string("channel_id"))
	if err != nil {
		respondWithMessage(s, i, err.Error())
		return
	}

	deferResponse(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get YouTube settings", "guildID", i.GuildID, "error", err)
		b.editResponse(s, i, "Failed to send test notification.")
		return
	}
	if settings.NotificationChannelID == "" {
		b.editResponse(s, i, "Set a notification channel first with `/youtube channel`.")
		return
	}

	video, err := b.youtube.LatestUpload(ctx, channelID)
	if errors.Is(err, watch.ErrNotFound) {
		b.editResponse(s, i, fmt.Sprintf("Channel `%s` has no uploads.", channelID))
		return
	}
	if err != nil {
		slog.Error("Failed to get latest upload", "channelID", channelID, "error", err)
		b.editResponse(s, i, "Could not reach YouTube right now. Please try again later.")
		return
	}

	ev := watch.Event{
		Entity: watch.Entity{
			Kind:             watch.KindYouTube,
			GuildID:          i.GuildID,
			RemoteID:         channelID,
			DisplayName:      video.ChannelTitle,
			ChannelID:        settings.NotificationChannelID,
			DefaultTemplate:  settings.MessageTemplate,
			CollectionRoleID: settings.MentionRoleID,
		},
		Item:       *youtube.VideoItem(video),
		Transition: watch.TransitionNewItem,
		DetectedAt: time.Now(),
	}

	if err := b.notifier.Notify(ctx, ev); err != nil {
		slog.Error("Failed to send test notification", "channelID", channelID, "error", err)
		b.editResponse(s, i, "Failed to send the test notification. Check that I can post in the notification channel.")
		return
	}

	b.editResponse(s, i, fmt.Sprintf("Test notification sent to %s.", channelMention(settings.NotificationChannelID)))
}

// handleYouTubeStatus handles /youtube status
func (b *Bot) handleYouTubeStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	settings, err := b.repo.GetYouTubeSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to get YouTube settings", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve status.")
		return
	}
	channels, err := b.repo.ListYouTubeChannels(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to list YouTube channels", "guildID", i.GuildID, "error", err)
		respondWithMessage(s, i, "Failed to retrieve status.")
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Notifications", Value: enabledText(settings.Enabled), Inline: true},
		{Name: "Channel", Value: channelMention(settings.NotificationChannelID), Inline: true},
		{Name: "Tracked", Value: fmt.Sprintf("%d", len(channels)), Inline: true},
		{Name: "API key", Value: configuredText(b.youtube != nil), Inline: true},
	}
	if b.youtube != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "API circuit", Value: b.youtube.BreakerState(), Inline: true})
	}
	fields = append(fields, b.watcherFields(watch.KindYouTube)...)

	respondWithEmbed(s, i, &discordgo.MessageEmbed{
		Title:  "YouTube status",
		Color:  0xFF0000,
		Fields: fields,
	})
}
