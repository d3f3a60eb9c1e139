package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kendottv/discordbot/internal/retry"
	"github.com/kendottv/discordbot/internal/watch"
)

const (
	// DefaultSafetyMargin is how long before expiry a token is treated as stale
	DefaultSafetyMargin = 10 * time.Minute

	defaultTokenAttempts = 3
	defaultTokenDelay    = 2 * time.Second
)

// ErrMissingCredentials is returned when no client id or secret is configured
var ErrMissingCredentials = errors.New("twitch client id or secret not configured")

// TokenStatus is a snapshot for the debug command
type TokenStatus struct {
	Configured bool
	Valid      bool
	Masked     string
	ExpiresAt  time.Time
	ObtainedAt time.Time
	LastError  string
}

// TokenSource fetches and caches a Twitch app access (client credentials) token
type TokenSource struct {
	config     clientcredentials.Config
	httpClient *http.Client
	clock      clockwork.Clock
	margin     time.Duration
	attempts   int
	delay      time.Duration
	log        *slog.Logger

	mu         sync.Mutex
	token      string
	expiresAt  time.Time
	obtainedAt time.Time
	lastErr    error
}

// TokenOption customizes a TokenSource
type TokenOption func(*TokenSource)

// WithTokenURL replaces the OAuth token endpoint
func WithTokenURL(u string) TokenOption {
	return func(ts *TokenSource) { ts.config.TokenURL = u }
}

// WithTokenHTTPClient replaces the HTTP client used for token requests
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(ts *TokenSource) { ts.httpClient = hc }
}

// WithTokenClock replaces the clock used for expiry checks
func WithTokenClock(c clockwork.Clock) TokenOption {
	return func(ts *TokenSource) { ts.clock = c }
}

// WithTokenRetry sets how many times a token request is attempted and the
// delay before the first retry
func WithTokenRetry(attempts int, delay time.Duration) TokenOption {
	return func(ts *TokenSource) {
		ts.attempts = attempts
		ts.delay = delay
	}
}

// NewTokenSource creates a token source for the given app credentials
func NewTokenSource(clientID, clientSecret string, opts ...TokenOption) *TokenSource {
	ts := &TokenSource{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      clockwork.NewRealClock(),
		margin:     DefaultSafetyMargin,
		attempts:   defaultTokenAttempts,
		delay:      defaultTokenDelay,
		log:        slog.Default().With("component", "twitch-token"),
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token returns a cached token when it is outside the safety margin,
// otherwise requests a new one. Failures are returned as *watch.AuthError.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.validLocked() {
		return ts.token, nil
	}

	if ts.config.ClientID == "" || ts.config.ClientSecret == "" {
		ts.lastErr = ErrMissingCredentials
		return "", &watch.AuthError{Err: ErrMissingCredentials}
	}

	policy := retry.Policy{
		MaxAttempts:    ts.attempts,
		InitialBackoff: ts.delay,
		Clock:          ts.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			ts.log.Warn("Token request failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	reqCtx := context.WithValue(ctx, oauth2.HTTPClient, ts.httpClient)
	tok, err := retry.Do(reqCtx, policy, classifyTokenError, func() (*oauth2.Token, error) {
		return ts.config.Token(reqCtx)
	})
	if err != nil {
		ts.lastErr = err
		ts.token = ""
		ts.log.Error("Failed to obtain app access token", "error", err)
		return "", &watch.AuthError{Err: err}
	}

	now := ts.clock.Now()
	ts.token = tok.AccessToken
	ts.obtainedAt = now
	ts.expiresAt = time.Time{}
	if !tok.Expiry.IsZero() {
		ts.expiresAt = now.Add(time.Until(tok.Expiry))
	}
	ts.lastErr = nil

	ts.log.Info("Obtained app access token", "token", mask(ts.token), "expiresAt", ts.expiresAt)
	return ts.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" {
		ts.log.Warn("Invalidating app access token", "token", mask(ts.token))
	}
	ts.token = ""
	ts.expiresAt = time.Time{}
}

// Status reports the cached token state without fetching
func (ts *TokenSource) Status() TokenStatus {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	st := TokenStatus{
		Configured: ts.config.ClientID != "" && ts.config.ClientSecret != "",
		Valid:      ts.validLocked(),
		Masked:     mask(ts.token),
		ExpiresAt:  ts.expiresAt,
		ObtainedAt: ts.obtainedAt,
	}
	if ts.lastErr != nil {
		st.LastError = ts.lastErr.Error()
	}
	return st
}

func (ts *TokenSource) validLocked() bool {
	if ts.token == "" {
		return false
	}
	if ts.expiresAt.IsZero() {
		return true
	}
	return ts.clock.Now().Before(ts.expiresAt.Add(-ts.margin))
}

// classifyTokenError stops on rejected credentials and retries anything else
func classifyTokenError(err error) retry.Action {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		switch code := rErr.Response.StatusCode; {
		case code == http.StatusTooManyRequests:
			return retry.After
		case code >= 400 && code < 500:
			return retry.Stop
		}
	}
	return retry.Retry
}

func mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return fmt.Sprintf("****%s", token[len(token)-4:])
}
