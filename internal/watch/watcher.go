package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kendottv/discordbot/internal/retry"
	"github.com/kendottv/discordbot/internal/telemetry"
)

const (
	defaultInterval      = time.Minute
	defaultFetchAttempts = 3
	defaultFetchBackoff  = time.Second
)

// Report summarizes one cycle
type Report struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Entities  int
	Notified  int
	Failed    int
	Err       error
}

// Status is a point-in-time view of a watcher for admin commands
type Status struct {
	Kind      Kind
	Running   bool
	Cycling   bool
	Interval  time.Duration
	LastCycle Report
}

// Option customizes a Watcher
type Option func(*Watcher)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clockwork.Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithLogger replaces the default logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// Watcher periodically checks every entity of one Kind for state changes
type Watcher struct {
	source   Source
	store    Store
	notifier Notifier
	policy   Policy
	clock    clockwork.Clock
	log      *slog.Logger

	running atomic.Bool
	cycling atomic.Bool

	mu       sync.Mutex
	stopChan chan struct{}
	interval time.Duration
	last     Report
	wg       sync.WaitGroup
}

// New creates a Watcher for the source's Kind
func New(source Source, store Store, notifier Notifier, policy Policy, opts ...Option) *Watcher {
	if policy.FetchAttempts <= 0 {
		policy.FetchAttempts = defaultFetchAttempts
	}
	if policy.FetchBackoff <= 0 {
		policy.FetchBackoff = defaultFetchBackoff
	}
	if policy.RateLimitBackoff <= 0 {
		policy.RateLimitBackoff = 2 * policy.FetchBackoff
	}

	w := &Watcher{
		source:   source,
		store:    store,
		notifier: notifier,
		policy:   policy,
		clock:    clockwork.NewRealClock(),
		log:      slog.Default().With("watcher", string(source.Kind())),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Kind returns the kind of entities this watcher polls
func (w *Watcher) Kind() Kind {
	return w.source.Kind()
}

// Start begins the polling loop in the background. The first cycle runs
// immediately; each following tick is armed only after the previous cycle
// has returned, so cycles never overlap.
func (w *Watcher) Start(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}

	stop := make(chan struct{})
	w.mu.Lock()
	w.stopChan = stop
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx, stop)
}

// Stop signals the loop to stop and waits for it. A cycle in flight
// finishes its current entity; no further entities are started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopChan != nil {
		close(w.stopChan)
		w.stopChan = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// RunOnce runs a single cycle unless one is already in progress
func (w *Watcher) RunOnce(ctx context.Context) (Report, bool) {
	w.mu.Lock()
	stop := w.stopChan
	w.mu.Unlock()
	return w.runCycle(ctx, stop)
}

// Status reports whether the loop is running and how the last cycle went
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Kind:      w.source.Kind(),
		Running:   w.running.Load(),
		Cycling:   w.cycling.Load(),
		Interval:  w.interval,
		LastCycle: w.last,
	}
}

func (w *Watcher) run(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()
	defer w.running.Store(false)

	w.log.Info("Starting watcher", "mode", w.policy.Mode.String())

	w.runCycle(ctx, stop)

	for {
		timer := w.clock.NewTimer(w.nextInterval(ctx))

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("Watcher stopped (context cancelled)")
			return
		case <-stop:
			timer.Stop()
			w.log.Info("Watcher stopped")
			return
		case <-timer.Chan():
			w.runCycle(ctx, stop)
		}
	}
}

func (w *Watcher) nextInterval(ctx context.Context) time.Duration {
	interval := defaultInterval
	if w.policy.Interval != nil {
		if d := w.policy.Interval(ctx); d > 0 {
			interval = d
		}
	}

	w.mu.Lock()
	if interval != w.interval && w.interval != 0 {
		w.log.Info("Poll interval changed", "from", w.interval, "to", interval)
	}
	w.interval = interval
	w.mu.Unlock()

	return interval
}

func (w *Watcher) runCycle(ctx context.Context, stop <-chan struct{}) (Report, bool) {
	if !w.cycling.CompareAndSwap(false, true) {
		w.log.Warn("Previous cycle still running, skipping")
		return Report{}, false
	}
	defer w.cycling.Store(false)

	report := w.cycle(ctx, stop)

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()

	return report, true
}

// cycle checks every entity in turn. Network calls run on a context that
// ignores cancellation so an in-flight request is never torn down midway;
// cancellation and stop are honoured between entities.
func (w *Watcher) cycle(ctx context.Context, stop <-chan struct{}) Report {
	kind := string(w.source.Kind())
	start := w.clock.Now()
	report := Report{CycleID: uuid.NewString(), StartedAt: start}
	log := w.log.With("cycle", report.CycleID)

	callCtx, span := telemetry.StartSpan(context.WithoutCancel(ctx), "watch.cycle",
		attribute.String("watch.kind", kind),
		attribute.String("watch.cycle", report.CycleID),
	)
	defer span.End()
	defer func() { telemetry.ObserveCycle(kind, w.clock.Since(start)) }()

	finish := func() Report {
		report.Duration = w.clock.Since(start)
		return report
	}

	if auth, ok := w.source.(Authenticator); ok {
		if err := auth.Authenticate(callCtx); err != nil {
			telemetry.AuthFailures.WithLabelValues(kind).Inc()
			telemetry.RecordError(span, err)
			log.Error("Skipping cycle, authentication failed", "error", err)
			report.Err = err
			return finish()
		}
	}

	entities, err := w.store.Entities(callCtx, w.source.Kind())
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to get entities", "error", err)
		report.Err = err
		return finish()
	}

	if len(entities) == 0 {
		log.Debug("No entities to poll")
		return finish()
	}

	log.Debug("Polling entities", "count", len(entities))

	for i, e := range entities {
		if !w.pause(ctx, stop, i > 0) {
			log.Info("Cycle interrupted", "checked", report.Entities, "remaining", len(entities)-i)
			break
		}

		report.Entities++
		result, err := w.check(callCtx, log, e)
		switch result {
		case checkAuthFailed:
			// Every remaining entity depends on the same credential
			telemetry.AuthFailures.WithLabelValues(kind).Inc()
			telemetry.RecordError(span, err)
			log.Error("Aborting cycle, authentication failed", "entity", e.RemoteID, "remaining", len(entities)-i-1, "error", err)
			report.Failed++
			report.Err = err
			return finish()
		case checkFailed:
			report.Failed++
		case checkNotified:
			report.Notified++
		}
	}

	log.Debug("Cycle finished", "entities", report.Entities, "notified", report.Notified, "failed", report.Failed)
	return finish()
}

// pause waits out the inter-entity delay. It returns false once the watcher
// has been stopped or the context cancelled.
func (w *Watcher) pause(ctx context.Context, stop <-chan struct{}, delay bool) bool {
	if !delay || w.policy.EntityDelay <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-w.clock.After(w.policy.EntityDelay):
		return true
	}
}

type checkResult int

const (
	checkOK checkResult = iota
	checkFailed
	checkNotified
	checkAuthFailed
)

// check fetches, evaluates, notifies and persists a single entity. Failures
// stay contained here except a rejected credential, which is returned so the
// cycle can stop.
func (w *Watcher) check(ctx context.Context, log *slog.Logger, e Entity) (checkResult, error) {
	kind := string(e.Kind)
	log = log.With("entity", e.RemoteID, "guildID", e.GuildID)

	ctx, span := telemetry.StartSpan(ctx, "watch.check",
		attribute.String("watch.kind", kind),
		attribute.String("watch.entity", e.RemoteID),
	)
	defer span.End()

	policy := retry.Policy{
		MaxAttempts:      w.policy.FetchAttempts,
		InitialBackoff:   w.policy.FetchBackoff,
		RateLimitBackoff: w.policy.RateLimitBackoff,
		Clock:            w.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			telemetry.FetchRetries.WithLabelValues(kind).Inc()
			log.Warn("Fetch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	item, err := retry.Do(ctx, policy, classifyFetch(), func() (*Item, error) {
		return w.source.Fetch(ctx, e)
	})
	if err != nil {
		if IsAuthFailure(err) {
			telemetry.RecordError(span, err)
			return checkAuthFailed, err
		}
		if !errors.Is(err, ErrNotFound) {
			telemetry.FetchFailures.WithLabelValues(kind).Inc()
			telemetry.RecordError(span, err)
			log.Error("Failed to get current state", "error", err)
			return checkFailed, nil
		}
		item = nil
	}

	now := w.clock.Now()
	d := Evaluate(w.policy, e.State, item, now)
	telemetry.Transitions.WithLabelValues(kind, string(d.Transition)).Inc()
	w.logDecision(log, d)

	result := checkOK
	if d.Notify && item != nil {
		if w.notify(ctx, log, Event{Entity: e, Item: *item, Transition: d.Transition, DetectedAt: now}) {
			result = checkNotified
		}
	}

	// The new state is persisted even when delivery failed so the same
	// item is never announced twice.
	if d.Persist {
		if err := w.store.SaveState(ctx, e, d.Next); err != nil {
			telemetry.RecordError(span, err)
			log.Error("Failed to update state", "error", err)
		}
	}

	return result, nil
}

func (w *Watcher) notify(ctx context.Context, log *slog.Logger, ev Event) bool {
	kind := string(ev.Entity.Kind)

	if enricher, ok := w.source.(Enricher); ok {
		if err := enricher.Enrich(ctx, ev.Entity, &ev.Item); err != nil {
			log.Warn("Failed to enrich notification", "error", err)
		}
	}

	if err := w.notifier.Notify(ctx, ev); err != nil {
		telemetry.Notifications.WithLabelValues(kind, "failed").Inc()
		log.Error("Failed to send notification", "item", ev.Item.ID, "error", err)
		return false
	}

	telemetry.Notifications.WithLabelValues(kind, "sent").Inc()
	log.Info("Sent notification", "item", ev.Item.ID, "title", ev.Item.Title)
	return true
}

func (w *Watcher) logDecision(log *slog.Logger, d Decision) {
	switch d.Transition {
	case TransitionBaseline:
		log.Info("Setting initial state", "state", d.Next.Fingerprint, "active", d.Next.Active)
	case TransitionStale:
		log.Info("Latest item is older than the freshness window, skipping notification", "state", d.Next.Fingerprint)
	case TransitionNewItem, TransitionWentLive, TransitionNewSession:
		log.Info("State change detected", "transition", d.Transition, "newState", d.Next.Fingerprint)
	case TransitionWentOffline:
		log.Info("Entity went offline")
	default:
		log.Debug("No state change", "transition", d.Transition)
	}
}
