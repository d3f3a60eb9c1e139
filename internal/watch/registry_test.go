package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	yt := New(newFakeSource(KindYouTube), newMemStore(), &recordingNotifier{}, testPolicy(ModeUpload))
	tw := New(newFakeSource(KindTwitch), newMemStore(), &recordingNotifier{}, testPolicy(ModeLive))
	reg.Register(yt)
	reg.Register(tw)

	got, err := reg.Get(KindTwitch)
	require.NoError(t, err)
	assert.Same(t, tw, got)

	_, err = reg.Get(Kind("kick"))
	assert.Error(t, err)

	statuses := reg.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, KindTwitch, statuses[0].Kind)
	assert.Equal(t, KindYouTube, statuses[1].Kind)
	assert.False(t, statuses[0].Running)

	// stopping watchers that were never started is a no-op
	reg.StopAll()
}
