package bot

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var adminPermission int64 = discordgo.PermissionManageServer

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	textChannel := &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "The channel to send notifications to",
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
	}
	youtubeChannelID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "channel_id",
		Description: "YouTube channel ID (starts with UC)",
		Required:    true,
	}
	twitchLogin := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "username",
		Description: "Twitch username",
		Required:    true,
	}
	role := func(desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        "role",
			Description: desc,
		}
	}
	message := func(desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "message",
			Description: desc,
			Required:    required,
		}
	}
	subcommand := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "youtube",
			Description:              "YouTube upload notifications",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("channel", "Set the channel for upload notifications",
					textChannel, role("Role to mention on new uploads"), message("Custom notification message", false)),
				subcommand("add", "Track a YouTube channel", youtubeChannelID),
				subcommand("remove", "Stop tracking a YouTube channel", youtubeChannelID),
				subcommand("list", "List tracked YouTube channels"),
				subcommand("toggle", "Enable or disable YouTube notifications"),
				subcommand("test", "Send a notification for the latest upload of a channel", youtubeChannelID),
				subcommand("status", "Show YouTube notification status"),
			},
		},
		{
			Name:                     "twitch",
			Description:              "Twitch live notifications",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("channel", "Set the channel for live notifications", textChannel),
				subcommand("add", "Track a Twitch streamer",
					twitchLogin, role("Role to mention when this streamer goes live"), message("Custom message for this streamer", false)),
				subcommand("remove", "Stop tracking a Twitch streamer", twitchLogin),
				subcommand("list", "List tracked Twitch streamers"),
				subcommand("toggle", "Enable or disable Twitch notifications"),
				subcommand("test", "Send a notification for a streamer who is live now", twitchLogin),
				subcommand("debug", "Show Twitch credential and watcher state"),
				subcommand("interval", "Set how often streams are checked",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "seconds",
						Description: "Seconds between checks (30-3600)",
						Required:    true,
						MinValue:    &minIntervalSeconds,
						MaxValue:    maxIntervalSeconds,
					}),
				subcommand("message", "Set the default live message; omit to reset",
					message("Placeholders: {streamer} {username} {title} {category} {viewers} {url}", false)),
				subcommand("mention", "Choose who is mentioned on live notifications",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "everyone",
						Description: "Mention @everyone",
						Required:    true,
					},
					role("Role to mention instead of @everyone")),
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()

	for _, cmd := range commandDefinitions {
		_, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		slog.Debug("Registered command", "name", cmd.Name)
	}

	slog.Info("Slash commands registered", "count", len(commandDefinitions))
	return nil
}

// Helper functions

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func subcommandOptions(sub *discordgo.ApplicationCommandInteractionDataOption) options {
	opts := make(options, len(sub.Options))
	for _, opt := range sub.Options {
		opts[opt.Name] = opt
	}
	return opts
}

func (o options) string(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

// id returns the snowflake of a channel or role option without an API lookup
func (o options) id(name string) string {
	if opt, ok := o[name]; ok {
		if id, ok := opt.Value.(string); ok {
			return id
		}
	}
	return ""
}

func (o options) has(name string) bool {
	_, ok := o[name]
	return ok
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func respondWithEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Error("Failed to defer interaction", "error", err)
	}
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Error("Failed to edit interaction response", "error", err)
	}
}
