// Package reconcile keeps local views consistent with the remote document
// store: live subscriptions delivering authoritative snapshots, and
// optimistic local mutations that are confirmed or rolled back against
// them.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/askline-dev/askline/internal/docstore"
)

var (
	subscriptionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_subscriptions_opened_total",
		Help: "Live subscriptions opened",
	})
	subscriptionsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_subscriptions_cancelled_total",
		Help: "Live subscriptions cancelled",
	})
	optimisticRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_optimistic_rollbacks_total",
		Help: "Optimistic mutations rolled back after remote failure",
	})
)

// Manager owns the live subscriptions of one view. It keeps at most one
// active subscription per (collection, filter, order) key: reopening a key
// tears the predecessor down first, so a detail view switching identity
// (e.g. another conversation's messages) never receives stale deliveries
// intermixed with fresh ones.
type Manager struct {
	store docstore.Client

	mu     sync.Mutex
	active map[string]*Handle
}

func NewManager(store docstore.Client) *Manager {
	return &Manager{
		store:  store,
		active: make(map[string]*Handle),
	}
}

// Open establishes a live query and starts snapshot delivery. Snapshots
// are complete ordered result sets, delivered in store commit order.
func (m *Manager) Open(ctx context.Context, q docstore.Query) (*Handle, error) {
	key := Fingerprint(q)

	m.mu.Lock()
	prev := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()
	if prev != nil {
		// Teardown before reopen; last-write-wins on a teardown race is
		// acceptable.
		prev.Cancel()
	}

	w, err := m.store.Watch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription %s: %w", key, err)
	}
	subscriptionsOpened.Inc()

	h := &Handle{key: key, watcher: w, manager: m}
	m.mu.Lock()
	m.active[key] = h
	m.mu.Unlock()
	return h, nil
}

// CancelAll tears down every subscription the manager holds; used when the
// owning view goes away.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.active))
	for _, h := range m.active {
		handles = append(handles, h)
	}
	m.active = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// Fingerprint canonicalizes a query into the subscription key.
func Fingerprint(q docstore.Query) string {
	var sb strings.Builder
	sb.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, "|%s %s %v", f.Field, f.Op, f.Value)
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&sb, "|order %s desc=%t", q.OrderBy, q.Desc)
	}
	return sb.String()
}

// Handle is a cancellable live subscription.
type Handle struct {
	key     string
	watcher docstore.Watcher
	manager *Manager
	once    sync.Once
}

// Snapshots yields complete ordered result sets. The channel closes after
// Cancel or on stream failure (check Err).
func (h *Handle) Snapshots() <-chan []docstore.Doc {
	return h.watcher.Snapshots()
}

// Cancel stops delivery and releases server-side resources. Safe to call
// multiple times; calls after the first are no-ops.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.watcher.Cancel()
		subscriptionsCancelled.Inc()

		h.manager.mu.Lock()
		if h.manager.active[h.key] == h {
			delete(h.manager.active, h.key)
		}
		h.manager.mu.Unlock()
	})
}

// Err reports why delivery stopped when it was not cancelled.
func (h *Handle) Err() error {
	return h.watcher.Err()
}
