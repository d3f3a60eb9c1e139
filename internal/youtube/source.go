package youtube

import (
	"context"

	"github.com/kendottv/discordbot/internal/watch"
)

// Source reports the latest upload of YouTube channels to a watcher
type Source struct {
	client *Client
}

// NewSource creates an upload source backed by client
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) Kind() watch.Kind { return watch.KindYouTube }

// Fetch returns the latest upload of the entity's channel
func (s *Source) Fetch(ctx context.Context, e watch.Entity) (*watch.Item, error) {
	video, err := s.client.LatestUpload(ctx, e.RemoteID)
	if err != nil {
		return nil, err
	}

	item := VideoItem(video)
	if item.DisplayName == "" {
		item.DisplayName = e.DisplayName
	}
	return item, nil
}

// VideoItem converts a video into a watch item
func VideoItem(v *Video) *watch.Item {
	return &watch.Item{
		ID:           v.ID,
		Title:        v.Title,
		DisplayName:  v.ChannelTitle,
		ThumbnailURL: v.ThumbnailURL,
		URL:          VideoURL(v.ID),
		PublishedAt:  v.PublishedAt,
	}
}

// VideoURL returns the watch page of a video
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
