package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kendottv/discordbot/internal/watch"
)

// User is a Helix user
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Stream is a Helix stream; it exists only while the user is live
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

type dataResponse[T any] struct {
	Data []T `json:"data"`
}

// GetUser resolves a login to its user. Returns watch.ErrNotFound when no such user exists.
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, errors.New("login is empty")
	}

	var resp dataResponse[User]
	if err := c.get(ctx, "/users", url.Values{"login": {login}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("user %s: %w", login, watch.ErrNotFound)
	}
	return &resp.Data[0], nil
}

// GetStream returns the current live stream of a login.
// Returns watch.ErrNotFound when the user is offline.
func (c *Client) GetStream(ctx context.Context, login string) (*Stream, error) {
	if login == "" {
		return nil, errors.New("login is empty")
	}

	var resp dataResponse[Stream]
	if err := c.get(ctx, "/streams", url.Values{"user_login": {login}}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if resp.Data[i].Type == "live" {
			return &resp.Data[i], nil
		}
	}
	return nil, fmt.Errorf("stream %s: %w", login, watch.ErrNotFound)
}
