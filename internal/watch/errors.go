package watch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kendottv/discordbot/internal/retry"
)

var (
	// ErrNotFound means the remote entity currently has no item (offline, no uploads)
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the credential was rejected; it has been invalidated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited means the remote API asked us to slow down
	ErrRateLimited = errors.New("rate limited")
)

// AuthError means no credential could be obtained; the whole cycle is skipped
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// StatusError is an unexpected HTTP status from a remote API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusRequestTimeout
}

// ParseError is a malformed remote response
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("failed to decode response: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Classify maps a fetch error onto a retry action
func Classify(err error) retry.Action {
	var authErr *AuthError
	var parseErr *ParseError
	var statusErr *StatusError

	switch {
	case errors.Is(err, ErrNotFound):
		return retry.Stop
	case errors.As(err, &authErr):
		return retry.Stop
	case errors.As(err, &parseErr):
		return retry.Stop
	case errors.Is(err, ErrRateLimited):
		return retry.After
	case errors.Is(err, ErrUnauthorized):
		return retry.Retry
	case errors.As(err, &statusErr):
		if statusErr.Temporary() {
			return retry.Retry
		}
		return retry.Stop
	default:
		// network errors and timeouts
		return retry.Retry
	}
}

// IsAuthFailure reports whether err means the credential could not be
// obtained or was still rejected after re-authenticating
func IsAuthFailure(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) || errors.Is(err, ErrUnauthorized)
}

// classifyFetch is Classify for one entity's fetch loop. A rejected
// credential is re-attempted once, after the source has re-authenticated.
func classifyFetch() retry.Classify {
	unauthorized := 0
	return func(err error) retry.Action {
		if errors.Is(err, ErrUnauthorized) {
			unauthorized++
			if unauthorized > 1 {
				return retry.Stop
			}
		}
		return Classify(err)
	}
}
