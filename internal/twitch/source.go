package twitch

import (
	"context"
	"strconv"
	"strings"

	"github.com/kendottv/discordbot/internal/watch"
)

const (
	thumbnailWidth  = 1920
	thumbnailHeight = 1080
)

// Source reports the live status of Twitch logins to a watcher
type Source struct {
	client *Client
}

// NewSource creates a live status source backed by client
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) Kind() watch.Kind { return watch.KindTwitch }

// Authenticate makes sure an app token is available before a cycle starts
func (s *Source) Authenticate(ctx context.Context) error {
	_, err := s.client.tokens.Token(ctx)
	return err
}

// Fetch returns the current stream of the entity's login.
// An offline streamer yields watch.ErrNotFound.
func (s *Source) Fetch(ctx context.Context, e watch.Entity) (*watch.Item, error) {
	stream, err := s.client.GetStream(ctx, e.RemoteID)
	if err != nil {
		return nil, err
	}
	return StreamItem(stream), nil
}

// Enrich adds the streamer's profile image to an item about to be announced
func (s *Source) Enrich(ctx context.Context, e watch.Entity, item *watch.Item) error {
	user, err := s.client.GetUser(ctx, e.RemoteID)
	if err != nil {
		return err
	}
	item.ProfileImageURL = user.ProfileImageURL
	if item.DisplayName == "" {
		item.DisplayName = user.DisplayName
	}
	return nil
}

// StreamItem converts a Helix stream into a watch item
func StreamItem(s *Stream) *watch.Item {
	return &watch.Item{
		ID:           s.ID,
		Title:        s.Title,
		DisplayName:  s.UserName,
		Login:        s.UserLogin,
		Category:     s.GameName,
		Viewers:      s.ViewerCount,
		ThumbnailURL: Thumbnail(s.ThumbnailURL, thumbnailWidth, thumbnailHeight),
		URL:          ChannelURL(s.UserLogin),
		PublishedAt:  s.StartedAt,
	}
}

// Thumbnail fills the {width} and {height} placeholders of a Helix thumbnail URL
func Thumbnail(template string, width, height int) string {
	return strings.NewReplacer(
		"{width}", strconv.Itoa(width),
		"{height}", strconv.Itoa(height),
	).Replace(template)
}

// ChannelURL returns the public channel page of a login
func ChannelURL(login string) string {
	return "https://twitch.tv/" + login
}
