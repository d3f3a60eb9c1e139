package watch

import (
	"context"
	"time"
)

// Mode selects how fingerprints are compared
type Mode int

const (
	// ModeUpload tracks the latest item id and suppresses stale backfills
	ModeUpload Mode = iota
	// ModeLive tracks an active flag plus the current session id
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "upload"
}

// Transition names the outcome of comparing a fetch against stored state
type Transition string

const (
	TransitionBaseline     Transition = "baseline"
	TransitionUnchanged    Transition = "unchanged"
	TransitionStale        Transition = "stale"
	TransitionNewItem      Transition = "new_item"
	TransitionWentLive     Transition = "went_live"
	TransitionNewSession   Transition = "new_session"
	TransitionWentOffline  Transition = "went_offline"
	TransitionStillOffline Transition = "still_offline"
)

// Policy configures one watcher
type Policy struct {
	Mode Mode

	// MaxAge is the freshness window for ModeUpload; zero disables the guard
	MaxAge time.Duration

	// Interval is consulted before arming each tick
	Interval func(ctx context.Context) time.Duration

	// EntityDelay is slept between two entities of the same cycle
	EntityDelay time.Duration

	// FetchAttempts bounds retries of a single entity's fetch
	FetchAttempts    int
	FetchBackoff     time.Duration
	RateLimitBackoff time.Duration
}

// FixedInterval returns an Interval func that always yields d
func FixedInterval(d time.Duration) func(context.Context) time.Duration {
	return func(context.Context) time.Duration { return d }
}

// Decision is what a cycle should do for one entity
type Decision struct {
	Transition Transition
	Next       State
	Persist    bool
	Notify     bool
}

// Evaluate compares a fetch result against the previous state.
// A nil item means the source reported ErrNotFound.
func Evaluate(p Policy, prev *State, item *Item, now time.Time) Decision {
	if prev == nil {
		next := State{CheckedAt: now}
		if item != nil {
			next.Fingerprint = item.ID
			next.Active = p.Mode == ModeLive
		}
		return Decision{Transition: TransitionBaseline, Next: next, Persist: true}
	}

	if p.Mode == ModeLive {
		return evaluateLive(prev, item, now)
	}
	return evaluateUpload(p, prev, item, now)
}

func evaluateUpload(p Policy, prev *State, item *Item, now time.Time) Decision {
	if item == nil || item.ID == prev.Fingerprint {
		return Decision{Transition: TransitionUnchanged, Next: *prev}
	}

	next := State{Fingerprint: item.ID, CheckedAt: now}
	if p.MaxAge > 0 && !item.PublishedAt.IsZero() && now.Sub(item.PublishedAt) > p.MaxAge {
		return Decision{Transition: TransitionStale, Next: next, Persist: true}
	}
	return Decision{Transition: TransitionNewItem, Next: next, Persist: true, Notify: true}
}

func evaluateLive(prev *State, item *Item, now time.Time) Decision {
	if item == nil {
		next := State{CheckedAt: now}
		if prev.Active {
			return Decision{Transition: TransitionWentOffline, Next: next, Persist: true}
		}
		return Decision{Transition: TransitionStillOffline, Next: next, Persist: true}
	}

	next := State{Active: true, Fingerprint: item.ID, CheckedAt: now}
	switch {
	case !prev.Active:
		return Decision{Transition: TransitionWentLive, Next: next, Persist: true, Notify: true}
	case item.ID != prev.Fingerprint:
		return Decision{Transition: TransitionNewSession, Next: next, Persist: true, Notify: true}
	default:
		return Decision{Transition: TransitionUnchanged, Next: next, Persist: true}
	}
}
