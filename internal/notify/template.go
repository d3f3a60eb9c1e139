package notify

import (
	"strconv"
	"strings"

	"github.com/kendottv/discordbot/internal/watch"
)

const (
	DefaultTwitchTemplate  = "🔴 **{streamer}** is live now!\n\n**{title}**\nCategory: {category}\nViewers: {viewers}\n\n🎮 Watch now: {url}"
	DefaultYouTubeTemplate = "🔔 **{channel}** uploaded a new video!\n**{title}**\n{url}"
)

// Placeholders lists the variables a message template may use
var Placeholders = []string{"{streamer}", "{username}", "{channel}", "{title}", "{category}", "{viewers}", "{url}"}

// Render fills template placeholders from item. Unknown placeholders are kept verbatim.
func Render(template string, item watch.Item) string {
	return strings.NewReplacer(
		"{streamer}", item.DisplayName,
		"{channel}", item.DisplayName,
		"{username}", item.Login,
		"{title}", item.Title,
		"{category}", item.Category,
		"{viewers}", strconv.Itoa(item.Viewers),
		"{url}", item.URL,
	).Replace(template)
}

// Template picks the message template for an entity: its own, then the
// collection default, then the built-in one for its kind
func Template(e watch.Entity) string {
	switch {
	case strings.TrimSpace(e.Template) != "":
		return e.Template
	case strings.TrimSpace(e.DefaultTemplate) != "":
		return e.DefaultTemplate
	case e.Kind == watch.KindTwitch:
		return DefaultTwitchTemplate
	default:
		return DefaultYouTubeTemplate
	}
}
