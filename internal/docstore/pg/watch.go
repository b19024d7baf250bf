package pg

import (
	"context"
	"sync"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/logger"
)

var (
	txRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstore_tx_retries_total",
		Help: "Serializable transaction retries",
	})
	snapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstore_snapshots_delivered_total",
		Help: "Live query snapshots delivered to watchers",
	})
)

type watcher struct {
	id    int64
	query docstore.Query
	store *Storage

	ch     chan []docstore.Doc
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	errMu  sync.Mutex
	err    error
}

var _ docstore.Watcher = (*watcher)(nil)

func (s *Storage) Watch(ctx context.Context, q docstore.Query) (docstore.Watcher, error) {
	buffer := 16
	if s.cfg != nil && s.cfg.WatchBufferSize > 0 {
		buffer = s.cfg.WatchBufferSize
	}

	s.mu.Lock()
	s.nextID++
	w := &watcher{
		id:    s.nextID,
		query: q,
		store: s,
		ch:    make(chan []docstore.Doc, buffer),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.watchers[w.id] = w
	s.mu.Unlock()

	go w.run(ctx)
	return w, nil
}

func (w *watcher) Snapshots() <-chan []docstore.Doc {
	return w.ch
}

func (w *watcher) Cancel() {
	w.stop(nil)
	w.store.mu.Lock()
	delete(w.store.watchers, w.id)
	w.store.mu.Unlock()
}

func (w *watcher) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *watcher) stop(err error) {
	w.once.Do(func() {
		w.errMu.Lock()
		w.err = err
		w.errMu.Unlock()
		close(w.done)
	})
}

// run delivers the initial snapshot, then re-runs the query after every
// notification on the watched collection. Serial requerying in a single
// goroutine keeps delivery consistent with commit order.
func (w *watcher) run(ctx context.Context) {
	defer close(w.ch)
	for {
		docs, err := w.store.List(ctx, w.query)
		if err != nil {
			logger.Log.Error("live query failed", "collection", w.query.Collection, "error", err)
			w.stop(err)
			return
		}
		if !w.deliver(ctx, docs) {
			return
		}

		select {
		case <-w.wake:
		case <-w.done:
			return
		case <-ctx.Done():
			w.stop(ctx.Err())
			return
		}
	}
}

func (w *watcher) deliver(ctx context.Context, docs []docstore.Doc) bool {
	for {
		select {
		case w.ch <- docs:
			snapshotsDelivered.Inc()
			return true
		case <-w.done:
			return false
		case <-ctx.Done():
			w.stop(ctx.Err())
			return false
		default:
		}
		// Consumer lags: drop the stalest pending snapshot. Each snapshot
		// is a full replacement, so skipping intermediates is safe.
		select {
		case <-w.ch:
		default:
		}
	}
}

// dispatch fans listener notifications out to matching watchers. A nil
// notification signals a reconnect; every watcher requeries since
// notifications may have been missed.
func (s *Storage) dispatch(ctx context.Context) {
	for {
		select {
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			s.wakeWatchers(func(w *watcher) bool {
				return n == nil || w.query.Collection == n.Extra
			})
		case <-ctx.Done():
			return
		}
	}
}

func (s *Storage) wakeWatchers(match func(*watcher) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		if match(w) {
			select {
			case w.wake <- struct{}{}:
			default: // already pending; requery will observe latest state
			}
		}
	}
}

func (s *Storage) listenerEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		logger.Log.Warn("pg listener event", "event", int(ev), "error", err)
	}
}
