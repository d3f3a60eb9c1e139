// Package notify delivers watch events to Discord channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kendottv/discordbot/internal/watch"
)

// ErrNoDestination is returned when the guild has no notification channel configured
var ErrNoDestination = errors.New("no notification channel configured")

const (
	twitchColor  = 0x9146FF
	youtubeColor = 0xFF0000
)

// MessageSender is the subset of *discordgo.Session used to deliver messages
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord sends events as a templated message plus a rich embed
type Discord struct {
	sender MessageSender
}

// NewDiscord creates a notifier that posts through sender
func NewDiscord(sender MessageSender) *Discord {
	return &Discord{sender: sender}
}

// Notify implements watch.Notifier
func (d *Discord) Notify(ctx context.Context, ev watch.Event) error {
	if ev.Entity.ChannelID == "" {
		return ErrNoDestination
	}

	msg := Message(ev)
	if _, err := d.sender.ChannelMessageSendComplex(ev.Entity.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", ev.Entity.ChannelID, err)
	}
	return nil
}

// Message builds the Discord message for an event
func Message(ev watch.Event) *discordgo.MessageSend {
	item := withFallbacks(ev.Entity, ev.Item)

	mentions, allowed := Mentions(ev.Entity)
	content := Render(Template(ev.Entity), item)
	if mentions != "" {
		content = mentions + "\n" + content
	}

	var embed *discordgo.MessageEmbed
	if ev.Entity.Kind == watch.KindTwitch {
		embed = liveEmbed(item, ev)
	} else {
		embed = uploadEmbed(item, ev)
	}

	return &discordgo.MessageSend{
		Content:         content,
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: allowed,
	}
}

// Mentions returns the mention prefix for an entity and the matching allow list.
// @everyone replaces the collection role; the entity's own role is always added.
func Mentions(e watch.Entity) (string, *discordgo.MessageAllowedMentions) {
	allowed := &discordgo.MessageAllowedMentions{}
	var parts []string

	switch {
	case e.MentionEveryone:
		parts = append(parts, "@everyone")
		allowed.Parse = append(allowed.Parse, discordgo.AllowedMentionTypeEveryone)
	case e.CollectionRoleID != "":
		parts = append(parts, fmt.Sprintf("<@&%s>", e.CollectionRoleID))
		allowed.Roles = append(allowed.Roles, e.CollectionRoleID)
	}

	if e.MentionRoleID != "" && e.MentionRoleID != e.CollectionRoleID {
		parts = append(parts, fmt.Sprintf("<@&%s>", e.MentionRoleID))
		allowed.Roles = append(allowed.Roles, e.MentionRoleID)
	}

	return strings.Join(parts, " "), allowed
}

func withFallbacks(e watch.Entity, item watch.Item) watch.Item {
	if item.DisplayName == "" {
		item.DisplayName = e.DisplayName
	}
	if item.DisplayName == "" {
		item.DisplayName = e.RemoteID
	}
	if item.Login == "" {
		item.Login = e.RemoteID
	}
	return item
}

func liveEmbed(item watch.Item, ev watch.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: item.Title,
		URL:   item.URL,
		Color: twitchColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    item.DisplayName,
			URL:     item.URL,
			IconURL: item.ProfileImageURL,
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Category",
				Value:  orDash(item.Category),
				Inline: true,
			},
			{
				Name:   "Viewers",
				Value:  fmt.Sprintf("%d", item.Viewers),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Twitch",
		},
		Timestamp: ev.DetectedAt.Format(time.RFC3339),
	}

	if !item.PublishedAt.IsZero() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Started",
			Value:  fmt.Sprintf("<t:%d:R>", item.PublishedAt.Unix()),
			Inline: true,
		})
	}
	if item.ProfileImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: item.ProfileImageURL}
	}
	if item.ThumbnailURL != "" {
		// Discord caches preview images by URL
		embed.Image = &discordgo.MessageEmbedImage{URL: fmt.Sprintf("%s?t=%d", item.ThumbnailURL, ev.DetectedAt.Unix())}
	}
	return embed
}

func uploadEmbed(item watch.Item, ev watch.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: item.Title,
		URL:   item.URL,
		Color: youtubeColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name: item.DisplayName,
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "YouTube",
		},
		Timestamp: ev.DetectedAt.Format(time.RFC3339),
	}

	if !item.PublishedAt.IsZero() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Published",
			Value: fmt.Sprintf("<t:%d:f>", item.PublishedAt.Unix()),
		})
	}
	if item.ThumbnailURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: item.ThumbnailURL}
	}
	return embed
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
