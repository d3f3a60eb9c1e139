// Package watch polls external resources on an interval, compares what it
// finds against the last recorded state of each tracked entity, and emits a
// notification exactly once per qualifying transition.
package watch

import (
	"context"
	"time"
)

// Kind identifies a watcher type and the collection of entities it polls
type Kind string

const (
	KindYouTube Kind = "youtube"
	KindTwitch  Kind = "twitch"
)

// State is the last observed fingerprint of one entity.
// It is replaced wholesale on every persisted cycle, never merged.
type State struct {
	Active      bool
	Fingerprint string
	CheckedAt   time.Time
}

// Entity is one tracked external resource plus where and how to announce it
type Entity struct {
	Kind    Kind
	GuildID string

	// RemoteID is the YouTube channel id or the Twitch login
	RemoteID    string
	DisplayName string

	// Destination and per-entity customization
	ChannelID     string
	MentionRoleID string
	Template      string

	// Collection-wide settings of the owning guild
	DefaultTemplate  string
	CollectionRoleID string
	MentionEveryone  bool

	// State is nil until the first successful poll
	State *State
}

// Seen reports whether the entity has a recorded state
func (e Entity) Seen() bool {
	return e.State != nil
}

// Item is the normalized current state of a remote entity
type Item struct {
	ID              string
	Title           string
	DisplayName     string
	Login           string
	Category        string
	Viewers         int
	ThumbnailURL    string
	ProfileImageURL string
	URL             string
	PublishedAt     time.Time
}

// Event is computed per cycle and never stored
type Event struct {
	Entity     Entity
	Item       Item
	Transition Transition
	DetectedAt time.Time
}

// Source fetches the current state of one entity.
// Fetch returns ErrNotFound when the entity has no qualifying item right now
// (no uploads, stream offline); that is a valid outcome, not a failure.
type Source interface {
	Kind() Kind
	Fetch(ctx context.Context, e Entity) (*Item, error)
}

// Authenticator is implemented by sources that need a credential before any fetch
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Enricher is implemented by sources that can add presentation data to an
// item right before it is announced
type Enricher interface {
	Enrich(ctx context.Context, e Entity, item *Item) error
}

// Store lists tracked entities and persists their state
type Store interface {
	Entities(ctx context.Context, kind Kind) ([]Entity, error)
	SaveState(ctx context.Context, e Entity, s State) error
}

// Notifier delivers an event to the entity's destination
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
