package memstore

import (
	"context"
	"sync"

	"github.com/askline-dev/askline/internal/docstore"
)

type watcher struct {
	id    int64
	query docstore.Query
	ch    chan []docstore.Doc

	store      *Store
	cancelOnce sync.Once
	closed     bool
	err        error
}

var _ docstore.Watcher = (*watcher)(nil)

func (s *Store) Watch(ctx context.Context, q docstore.Query) (docstore.Watcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	w := &watcher{
		id:    s.nextID,
		query: q,
		ch:    make(chan []docstore.Doc, s.WatchBuffer),
		store: s,
	}
	s.watchers[w.id] = w

	// Initial snapshot so subscribers render current state immediately.
	w.deliverLocked(s.evaluate(q))

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			w.Cancel()
		}()
	}
	return w, nil
}

func (w *watcher) Snapshots() <-chan []docstore.Doc {
	return w.ch
}

func (w *watcher) Cancel() {
	w.cancelOnce.Do(func() {
		w.store.mu.Lock()
		defer w.store.mu.Unlock()
		delete(w.store.watchers, w.id)
		w.closeLocked()
	})
}

func (w *watcher) Err() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	return w.err
}

// closeLocked drops pending snapshots and closes the channel. Caller holds
// the store lock.
func (w *watcher) closeLocked() {
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// deliverLocked sends a full snapshot, coalescing with the oldest pending
// one when the consumer lags. Delivery happens under the store lock, so
// snapshot order matches commit order.
func (w *watcher) deliverLocked(snapshot []docstore.Doc) {
	if w.closed {
		return
	}
	for {
		select {
		case w.ch <- snapshot:
			return
		default:
			select {
			case <-w.ch: // drop the stalest pending snapshot
			default:
			}
		}
	}
}

// notifyLocked re-evaluates every watcher on the touched collection.
// Caller holds the lock.
func (s *Store) notifyLocked(collection string) {
	for _, w := range s.watchers {
		if w.query.Collection == collection {
			w.deliverLocked(s.evaluate(w.query))
		}
	}
}
