package twitch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestClient serves both the token endpoint and Helix from one handler
func newTestClient(t *testing.T, helix http.HandlerFunc) (*Client, *int) {
	t.Helper()

	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","expires_in":3600,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/helix/", helix)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tokens := NewTokenSource("test-client-id", "test-secret",
		WithTokenURL(server.URL+"/oauth2/token"),
		WithTokenRetry(3, time.Millisecond),
	)
	client := NewClient("test-client-id", tokens,
		WithBaseURL(server.URL+"/helix"),
		WithRateLimit(rate.NewLimiter(rate.Inf, 1)),
	)
	return client, &tokenCalls
}
