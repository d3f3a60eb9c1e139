package youtube

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendottv/discordbot/internal/watch"
)

func TestSource_Fetch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(latestUploadBody))
	})
	src := NewSource(client)
	assert.Equal(t, watch.KindYouTube, src.Kind())

	item, err := src.Fetch(context.Background(), watch.Entity{Kind: watch.KindYouTube, RemoteID: "UC123"})
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", item.ID)
	assert.Equal(t, "Some Channel", item.DisplayName)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", item.URL)
	assert.False(t, item.PublishedAt.IsZero())
}
