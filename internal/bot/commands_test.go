package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendottv/discordbot/internal/storage"
	"github.com/kendottv/discordbot/internal/watch"
)

func TestNormalizeTwitchLogin(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "Streamer_01", want: "streamer_01"},
		{input: "  streamer  ", want: "streamer"},
		{input: "https://www.twitch.tv/streamer/", want: "streamer"},
		{input: "twitch.tv/streamer", want: "streamer"},
		{input: "@streamer", want: "streamer"},
		{input: "ab", wantErr: true},
		{input: "has space", wantErr: true},
		{input: "way_too_long_for_a_twitch_login", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := normalizeTwitchLogin(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateYouTubeChannelID(t *testing.T) {
	got, err := validateYouTubeChannelID(" UC_x5XG1OV2P6uZZ5FSM9Ttw ")
	require.NoError(t, err)
	assert.Equal(t, "UC_x5XG1OV2P6uZZ5FSM9Ttw", got)

	for _, bad := range []string{"", "@GoogleDevelopers", "UC123", "XX_x5XG1OV2P6uZZ5FSM9Ttw"} {
		_, err := validateYouTubeChannelID(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommandDefinitions(t *testing.T) {
	b := &Bot{}
	defs := b.getCommandDefinitions()
	require.Len(t, defs, 2)

	subcommands := func(cmd *discordgo.ApplicationCommand) []string {
		var names []string
		for _, opt := range cmd.Options {
			assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, opt.Type)
			names = append(names, opt.Name)
		}
		return names
	}

	assert.Equal(t, "youtube", defs[0].Name)
	assert.Equal(t, []string{"channel", "add", "remove", "list", "toggle", "test", "status"}, subcommands(defs[0]))

	assert.Equal(t, "twitch", defs[1].Name)
	assert.Equal(t, []string{"channel", "add", "remove", "list", "toggle", "test", "debug", "interval", "message", "mention"}, subcommands(defs[1]))

	for _, def := range defs {
		require.NotNil(t, def.DefaultMemberPermissions)
		assert.Equal(t, int64(discordgo.PermissionManageServer), *def.DefaultMemberPermissions)
	}
}

func TestSubcommandOptions(t *testing.T) {
	sub := &discordgo.ApplicationCommandInteractionDataOption{
		Name: "add",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "username", Type: discordgo.ApplicationCommandOptionString, Value: "streamer"},
			{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "123456"},
		},
	}

	opts := subcommandOptions(sub)
	assert.Equal(t, "streamer", opts.string("username"))
	assert.Equal(t, "123456", opts.id("role"))
	assert.True(t, opts.has("role"))
	assert.False(t, opts.has("message"))
	assert.Empty(t, opts.string("message"))
}

func TestIsAdmin(t *testing.T) {
	admin := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{Permissions: discordgo.PermissionManageServer},
	}}
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{Permissions: discordgo.PermissionSendMessages},
	}}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	assert.True(t, isAdmin(admin))
	assert.False(t, isAdmin(member))
	assert.False(t, isAdmin(dm))
}

func TestTwitchEntity(t *testing.T) {
	settings := &storage.TwitchSettings{
		GuildID: "g1", NotificationChannelID: "c1", MessageTemplate: "guild", MentionRoleID: "r1", MentionEveryone: true,
	}

	e := twitchEntity(settings, nil, "streamer")
	assert.Equal(t, watch.KindTwitch, e.Kind)
	assert.Equal(t, "streamer", e.RemoteID)
	assert.Equal(t, "c1", e.ChannelID)
	assert.Equal(t, "guild", e.DefaultTemplate)
	assert.True(t, e.MentionEveryone)
	assert.Empty(t, e.Template)

	e = twitchEntity(settings, &storage.TwitchStreamer{DisplayName: "Streamer", MentionRoleID: "r2", MessageTemplate: "own"}, "streamer")
	assert.Equal(t, "Streamer", e.DisplayName)
	assert.Equal(t, "r2", e.MentionRoleID)
	assert.Equal(t, "own", e.Template)
}

func TestStatusFields(t *testing.T) {
	fields := statusFields(watch.Status{Kind: watch.KindTwitch})
	require.Len(t, fields, 1)
	assert.Equal(t, "⏹️ Stopped", fields[0].Value)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fields = statusFields(watch.Status{
		Running:  true,
		Interval: time.Minute,
		LastCycle: watch.Report{
			StartedAt: started,
			Entities:  3,
			Notified:  1,
			Failed:    1,
			Err:       errors.New("authentication failed"),
		},
	})
	require.Len(t, fields, 3)
	assert.Equal(t, "✅ Running", fields[0].Value)
	assert.Equal(t, "1m0s", fields[1].Value)
	assert.Contains(t, fields[2].Value, "3 checked, 1 notified, 1 failed")
	assert.NotContains(t, fields[2].Value, "authentication failed", "errors are not shown to users")
}

func TestListEmbeds(t *testing.T) {
	yt := youTubeListEmbed(
		&storage.YouTubeSettings{NotificationChannelID: "c1", Enabled: true},
		[]*storage.YouTubeChannel{{ChannelID: "UC1", ChannelTitle: "One"}, {ChannelID: "UC2"}},
	)
	assert.Contains(t, yt.Description, "<#c1>")
	assert.Contains(t, yt.Description, "1. One (`UC1`)")
	assert.Contains(t, yt.Description, "2. UC2 (`UC2`)")
	assert.Equal(t, "Enabled", yt.Footer.Text)

	tw := twitchListEmbed([]*storage.TwitchStreamer{
		{Login: "live_one", DisplayName: "LiveOne", IsLive: true, MentionRoleID: "r1"},
		{Login: "offline"},
	})
	assert.Contains(t, tw.Description, "1. 🔴 [LiveOne](https://twitch.tv/live_one) <@&r1>")
	assert.Contains(t, tw.Description, "2. ⚫ [offline](https://twitch.tv/offline)")
}
