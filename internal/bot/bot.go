package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kendottv/discordbot/internal/config"
	"github.com/kendottv/discordbot/internal/notify"
	"github.com/kendottv/discordbot/internal/storage"
	"github.com/kendottv/discordbot/internal/twitch"
	"github.com/kendottv/discordbot/internal/watch"
	"github.com/kendottv/discordbot/internal/youtube"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	repo     *storage.Repository
	registry *watch.Registry
	notifier *notify.Discord

	// nil when the matching credentials are not configured
	twitch       *twitch.Client
	twitchSource *twitch.Source
	youtube      *youtube.Client
}

// New creates a new Bot instance
func New(ctx context.Context, cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	b := &Bot{
		config:   cfg,
		session:  session,
		repo:     repo,
		registry: watch.NewRegistry(),
		notifier: notify.NewDiscord(session),
	}

	if err := b.registerWatchers(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// registerWatchers builds a watcher for every source with credentials
func (b *Bot) registerWatchers(ctx context.Context) error {
	cfg := b.config

	if cfg.YouTubeEnabled() {
		client, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize YouTube client: %w", err)
		}
		b.youtube = client

		b.registry.Register(watch.New(youtube.NewSource(client), b.repo, b.notifier, watch.Policy{
			Mode:        watch.ModeUpload,
			MaxAge:      cfg.FreshnessWindow,
			Interval:    watch.FixedInterval(cfg.YouTubePollInterval),
			EntityDelay: cfg.EntityDelay,
		}))
	} else {
		slog.Warn("YT_API_KEY not set, YouTube notifications are disabled")
	}

	if cfg.TwitchEnabled() {
		tokens := twitch.NewTokenSource(cfg.TwitchClientID, cfg.TwitchClientSecret)
		b.twitch = twitch.NewClient(cfg.TwitchClientID, tokens)
		b.twitchSource = twitch.NewSource(b.twitch)

		b.registry.Register(watch.New(b.twitchSource, b.repo, b.notifier, watch.Policy{
			Mode:        watch.ModeLive,
			Interval:    b.twitchInterval,
			EntityDelay: cfg.EntityDelay,
		}))
	} else {
		slog.Warn("TWITCH_CLIENT_ID or TWITCH_CLIENT_SECRET not set, Twitch notifications are disabled")
	}

	return nil
}

// twitchInterval re-reads the guild check intervals before every tick
func (b *Bot) twitchInterval(ctx context.Context) time.Duration {
	interval, err := b.repo.TwitchInterval(ctx, b.config.TwitchPollInterval)
	if err != nil {
		slog.Warn("Failed to read Twitch check interval, using default", "error", err)
	}
	return interval
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the watchers
	b.registry.StartAll(ctx)
	for _, st := range b.registry.Statuses() {
		slog.Info("Watcher started", "kind", st.Kind, "running", st.Running)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the watchers; in-flight checks finish first
	b.registry.StopAll()

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 || i.GuildID == "" {
		respondWithMessage(s, i, "This command can only be used in a server.")
		return
	}

	sub := data.Options[0]
	slog.Debug("Received command", "command", data.Name, "subcommand", sub.Name, "guild", i.GuildID)

	if !isAdmin(i) {
		respondWithMessage(s, i, "You need the **Manage Server** permission to use this command.")
		return
	}

	switch data.Name {
	case "youtube":
		b.handleYouTube(s, i, sub)
	case "twitch":
		b.handleTwitch(s, i, sub)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageServer != 0
}
