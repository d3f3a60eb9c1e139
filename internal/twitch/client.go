// Package twitch is a small Helix API client used to poll live status.
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/kendottv/discordbot/internal/watch"
)

const (
	HelixBaseURL = "https://api.twitch.tv/helix"
	TokenURL     = "https://id.twitch.tv/oauth2/token"
)

// APIError represents a Helix error response
type APIError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Client is a Twitch Helix API client with rate limiting
type Client struct {
	clientID   string
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another Helix endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit replaces the request limiter
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a new Helix client. Requests are authorized with
// app access tokens taken from tokens.
func NewClient(clientID string, tokens *TokenSource, opts ...Option) *Client {
	c := &Client{
		clientID: clientID,
		baseURL:  HelixBaseURL,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// App tokens get 800 points per minute
		limiter: rate.NewLimiter(rate.Every(75*time.Millisecond), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the token source backing this client
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// doRequest performs an HTTP request with rate limiting and auth headers
func (c *Client) doRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	return c.httpClient.Do(req)
}

// get performs a GET request and decodes the JSON response
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.parseError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &watch.ParseError{Err: err}
	}

	return nil
}

// parseError maps Helix error responses onto watch errors
func (c *Client) parseError(statusCode int, body []byte) error {
	msg := string(body)
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		// The cached token was revoked or expired early
		c.tokens.Invalidate()
		return fmt.Errorf("%w: %s", watch.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", watch.ErrNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", watch.ErrRateLimited, msg)
	default:
		return &watch.StatusError{StatusCode: statusCode, Body: msg}
	}
}
