package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry manages all running watchers
type Registry struct {
	mu       sync.RWMutex
	watchers map[Kind]*Watcher
}

// NewRegistry creates a new watcher registry
func NewRegistry() *Registry {
	return &Registry{
		watchers: make(map[Kind]*Watcher),
	}
}

// Register adds a watcher to the registry
func (r *Registry) Register(w *Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[w.Kind()] = w
}

// Get retrieves a watcher by kind
func (r *Registry) Get(kind Kind) (*Watcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.watchers[kind]
	if !ok {
		return nil, fmt.Errorf("watcher not configured: %s", kind)
	}
	return w, nil
}

// StartAll starts every registered watcher
func (r *Registry) StartAll(ctx context.Context) {
	for _, w := range r.all() {
		w.Start(ctx)
	}
}

// StopAll stops every registered watcher and waits for in-flight cycles
func (r *Registry) StopAll() {
	for _, w := range r.all() {
		w.Stop()
	}
}

// Statuses returns the status of every watcher, ordered by kind
func (r *Registry) Statuses() []Status {
	watchers := r.all()
	statuses := make([]Status, 0, len(watchers))
	for _, w := range watchers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

func (r *Registry) all() []*Watcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers := make([]*Watcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		watchers = append(watchers, w)
	}
	sort.Slice(watchers, func(i, j int) bool { return watchers[i].Kind() < watchers[j].Kind() })
	return watchers
}
