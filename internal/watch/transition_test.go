package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	upload := Policy{Mode: ModeUpload, MaxAge: 24 * time.Hour}
	live := Policy{Mode: ModeLive}

	tests := []struct {
		name    string
		policy  Policy
		prev    *State
		item    *Item
		want    Transition
		next    State
		persist bool
		notify  bool
	}{
		{
			name:    "upload unseen records baseline",
			policy:  upload,
			item:    &Item{ID: "v1", PublishedAt: now},
			want:    TransitionBaseline,
			next:    State{Fingerprint: "v1", CheckedAt: now},
			persist: true,
		},
		{
			name:    "upload unseen without uploads records empty baseline",
			policy:  upload,
			want:    TransitionBaseline,
			next:    State{CheckedAt: now},
			persist: true,
		},
		{
			name:   "upload same fingerprint",
			policy: upload,
			prev:   &State{Fingerprint: "v1", CheckedAt: earlier},
			item:   &Item{ID: "v1", PublishedAt: now},
			want:   TransitionUnchanged,
			next:   State{Fingerprint: "v1", CheckedAt: earlier},
		},
		{
			name:   "upload seen and nothing found",
			policy: upload,
			prev:   &State{Fingerprint: "v1", CheckedAt: earlier},
			want:   TransitionUnchanged,
			next:   State{Fingerprint: "v1", CheckedAt: earlier},
		},
		{
			name:    "upload fresh new item",
			policy:  upload,
			prev:    &State{Fingerprint: "v1"},
			item:    &Item{ID: "v2", PublishedAt: now.Add(-2 * time.Minute)},
			want:    TransitionNewItem,
			next:    State{Fingerprint: "v2", CheckedAt: now},
			persist: true,
			notify:  true,
		},
		{
			name:    "upload stale backfill",
			policy:  upload,
			prev:    &State{Fingerprint: "v1"},
			item:    &Item{ID: "v3", PublishedAt: now.Add(-30 * time.Hour)},
			want:    TransitionStale,
			next:    State{Fingerprint: "v3", CheckedAt: now},
			persist: true,
		},
		{
			name:    "upload unknown publish time counts as fresh",
			policy:  upload,
			prev:    &State{Fingerprint: "v1"},
			item:    &Item{ID: "v2"},
			want:    TransitionNewItem,
			next:    State{Fingerprint: "v2", CheckedAt: now},
			persist: true,
			notify:  true,
		},
		{
			name:    "upload without freshness window",
			policy:  Policy{Mode: ModeUpload},
			prev:    &State{Fingerprint: "v1"},
			item:    &Item{ID: "v2", PublishedAt: now.Add(-72 * time.Hour)},
			want:    TransitionNewItem,
			next:    State{Fingerprint: "v2", CheckedAt: now},
			persist: true,
			notify:  true,
		},
		{
			name:    "live unseen and live records baseline",
			policy:  live,
			item:    &Item{ID: "s1"},
			want:    TransitionBaseline,
			next:    State{Active: true, Fingerprint: "s1", CheckedAt: now},
			persist: true,
		},
		{
			name:    "live unseen and offline records baseline",
			policy:  live,
			want:    TransitionBaseline,
			next:    State{CheckedAt: now},
			persist: true,
		},
		{
			name:    "live went live",
			policy:  live,
			prev:    &State{},
			item:    &Item{ID: "s1"},
			want:    TransitionWentLive,
			next:    State{Active: true, Fingerprint: "s1", CheckedAt: now},
			persist: true,
			notify:  true,
		},
		{
			name:    "live same session only refreshes checked time",
			policy:  live,
			prev:    &State{Active: true, Fingerprint: "s1", CheckedAt: earlier},
			item:    &Item{ID: "s1"},
			want:    TransitionUnchanged,
			next:    State{Active: true, Fingerprint: "s1", CheckedAt: now},
			persist: true,
		},
		{
			name:    "live new session",
			policy:  live,
			prev:    &State{Active: true, Fingerprint: "s1"},
			item:    &Item{ID: "s2"},
			want:    TransitionNewSession,
			next:    State{Active: true, Fingerprint: "s2", CheckedAt: now},
			persist: true,
			notify:  true,
		},
		{
			name:    "live went offline",
			policy:  live,
			prev:    &State{Active: true, Fingerprint: "s1"},
			want:    TransitionWentOffline,
			next:    State{CheckedAt: now},
			persist: true,
		},
		{
			name:    "live still offline",
			policy:  live,
			prev:    &State{CheckedAt: earlier},
			want:    TransitionStillOffline,
			next:    State{CheckedAt: now},
			persist: true,
		},
		{
			name:    "live ignores publish age",
			policy:  Policy{Mode: ModeLive, MaxAge: time.Hour},
			prev:    &State{},
			item:    &Item{ID: "s1", PublishedAt: now.Add(-10 * time.Hour)},
			want:    TransitionWentLive,
			next:    State{Active: true, Fingerprint: "s1", CheckedAt: now},
			persist: true,
			notify:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.policy, tt.prev, tt.item, now)

			assert.Equal(t, tt.want, d.Transition)
			assert.Equal(t, tt.next, d.Next)
			assert.Equal(t, tt.persist, d.Persist)
			assert.Equal(t, tt.notify, d.Notify)
		})
	}
}

func TestEvaluate_ReplayIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Policy{Mode: ModeUpload, MaxAge: 24 * time.Hour}
	item := &Item{ID: "v2", PublishedAt: now}

	state := &State{Fingerprint: "v1"}
	notifications := 0
	for i := 0; i < 5; i++ {
		d := Evaluate(p, state, item, now.Add(time.Duration(i)*time.Minute))
		if d.Notify {
			notifications++
		}
		next := d.Next
		state = &next
	}

	assert.Equal(t, 1, notifications)
	assert.Equal(t, "v2", state.Fingerprint)
}
