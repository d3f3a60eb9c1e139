// Package youtube looks up the latest upload of YouTube channels through
// the Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/kendottv/discordbot/internal/watch"
)

// Video is the most recent upload of a channel
type Video struct {
	ID           string
	Title        string
	ChannelID    string
	ChannelTitle string
	ThumbnailURL string
	PublishedAt  time.Time
}

// ChannelInfo is the public profile of a channel
type ChannelInfo struct {
	ID           string
	Title        string
	ThumbnailURL string
}

// Client is a YouTube Data API client keyed by an API key
type Client struct {
	service *yt.Service
	breaker *gobreaker.CircuitBreaker

	mu       sync.RWMutex
	channels map[string]ChannelInfo
}

// NewClient creates a client authenticated with apiKey. Extra options are
// passed to the generated service, e.g. option.WithEndpoint in tests.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube API key is empty")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "youtube",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
		// A channel without uploads is not an API failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, watch.ErrNotFound)
		},
	})

	return &Client{
		service:  service,
		breaker:  breaker,
		channels: make(map[string]ChannelInfo),
	}, nil
}

// LatestUpload returns the newest public video of a channel.
// Returns watch.ErrNotFound when the channel has no uploads.
func (c *Client) LatestUpload(ctx context.Context, channelID string) (*Video, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.service.Search.List([]string{"snippet"}).
			ChannelId(channelID).
			MaxResults(1).
			Order("date").
			Type("video").
			Fields("items(id/videoId,snippet(channelId,publishedAt,title,channelTitle,thumbnails/high/url))").
			Context(ctx).
			Do()
		if err != nil {
			return nil, mapError(err)
		}
		if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.VideoId == "" {
			return nil, fmt.Errorf("uploads of %s: %w", channelID, watch.ErrNotFound)
		}
		return toVideo(resp.Items[0]), nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.(*Video), nil
}

// Channel looks up a channel by id, caching the result for the life of the client.
// Returns watch.ErrNotFound for unknown ids.
func (c *Client) Channel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	c.mu.RLock()
	info, ok := c.channels[channelID]
	c.mu.RUnlock()
	if ok {
		return &info, nil
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.service.Channels.List([]string{"snippet"}).
			Id(channelID).
			Fields("items(id,snippet(title,thumbnails/high/url))").
			Context(ctx).
			Do()
		if err != nil {
			return nil, mapError(err)
		}
		if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
			return nil, fmt.Errorf("channel %s: %w", channelID, watch.ErrNotFound)
		}

		ch := resp.Items[0]
		info := ChannelInfo{ID: channelID, Title: ch.Snippet.Title}
		if th := ch.Snippet.Thumbnails; th != nil && th.High != nil {
			info.ThumbnailURL = th.High.Url
		}
		return info, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}

	info = res.(ChannelInfo)
	c.mu.Lock()
	c.channels[channelID] = info
	c.mu.Unlock()

	return &info, nil
}

// BreakerState reports the circuit breaker state for the status command
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func toVideo(item *yt.SearchResult) *Video {
	v := &Video{ID: item.Id.VideoId}
	if s := item.Snippet; s != nil {
		v.Title = s.Title
		v.ChannelID = s.ChannelId
		v.ChannelTitle = s.ChannelTitle
		if s.Thumbnails != nil && s.Thumbnails.High != nil {
			v.ThumbnailURL = s.Thumbnails.High.Url
		}
		// An unparsable timestamp leaves PublishedAt zero, which is treated as fresh
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			v.PublishedAt = t
		}
	}
	return v
}

// mapError translates googleapi errors onto the watch taxonomy
func mapError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", watch.ErrNotFound, apiErr.Message)
	case apiErr.Code == http.StatusTooManyRequests, isQuotaError(apiErr):
		return fmt.Errorf("%w: %s", watch.ErrRateLimited, apiErr.Message)
	case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
		return &watch.AuthError{Err: apiErr}
	default:
		return &watch.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
}

func isQuotaError(apiErr *googleapi.Error) bool {
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, e := range apiErr.Errors {
		switch e.Reason {
		case "quotaExceeded", "rateLimitExceeded", "dailyLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

// breakerError turns an open circuit into a retryable rate limit
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: youtube circuit %v", watch.ErrRateLimited, err)
	}
	return err
}
