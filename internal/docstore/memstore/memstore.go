// Package memstore is an in-memory docstore.Client used by unit tests and
// the -store=memory development mode. Transactions run under a single
// store-wide lock, which makes them trivially serializable; live queries
// are re-evaluated and delivered in commit order.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/errors"
)

type Store struct {
	mu       sync.Mutex
	docs     map[string]docstore.Doc
	watchers map[int64]*watcher
	nextID   int64
	closed   bool

	// WatchBuffer is the snapshot channel depth per watcher; snapshots are
	// coalesced when a consumer lags (each one is a full replacement).
	WatchBuffer int
}

var _ docstore.Client = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:        make(map[string]docstore.Doc),
		watchers:    make(map[int64]*watcher),
		WatchBuffer: 16,
	}
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Doc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return docstore.Doc{}, errors.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluate(q), nil
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	path := docstore.DocPath(collection, uuid.NewString())
	if err := s.Set(ctx, path, data, false); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(path, data, merge, time.Now().UTC())
	s.notifyLocked(docstore.ParentCollection(path))
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	s.notifyLocked(docstore.ParentCollection(path))
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	touched := make(map[string]bool)
	for _, w := range tx.writes {
		if w.delete {
			delete(s.docs, w.path)
		} else {
			s.setLocked(w.path, w.data, w.merge, now)
		}
		touched[docstore.ParentCollection(w.path)] = true
	}
	for col := range touched {
		s.notifyLocked(col)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, w := range s.watchers {
		w.closeLocked()
	}
	s.watchers = make(map[int64]*watcher)
	return nil
}

func (s *Store) setLocked(path string, data map[string]any, merge bool, now time.Time) {
	existing, ok := s.docs[path]
	var current map[string]any
	if ok {
		current = existing.Data
	}

	resolved := docstore.ResolveSentinels(current, data, now)
	doc := docstore.Doc{Path: path, CreateTime: now, UpdateTime: now}
	if ok {
		doc.CreateTime = existing.CreateTime
	}
	if merge && ok {
		merged := make(map[string]any, len(current)+len(resolved))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range resolved {
			merged[k] = v
		}
		doc.Data = merged
	} else {
		doc.Data = resolved
	}
	s.docs[path] = doc
}

// evaluate runs a query against current state. Caller holds the lock.
func (s *Store) evaluate(q docstore.Query) []docstore.Doc {
	prefix := q.Collection + "/"
	var out []docstore.Doc
	for path, doc := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.ContainsRune(path[len(prefix):], '/') {
			continue
		}
		if matches(doc, q.Filters) {
			out = append(out, cloneDoc(doc))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]) < 0
			if q.Desc {
				return !less
			}
			return less
		})
	}
	return out
}

func matches(doc docstore.Doc, filters []docstore.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case docstore.OpEqual:
			if compareValues(doc.Data[f.Field], f.Value) != 0 {
				return false
			}
		case docstore.OpArrayContains:
			if !arrayContains(doc.Data[f.Field], f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func arrayContains(field, value any) bool {
	switch arr := field.(type) {
	case []any:
		for _, v := range arr {
			if compareValues(v, value) == 0 {
				return true
			}
		}
	case []string:
		for _, v := range arr {
			if compareValues(v, value) == 0 {
				return true
			}
		}
	}
	return false
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int, int64, float64:
		an := asFloat(a)
		if bn, ok := tryFloat(b); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	// Incomparable types never match equality and sort arbitrarily.
	return 1
}

func asFloat(v any) float64 {
	f, _ := tryFloat(v)
	return f
}

func tryFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cloneDoc(doc docstore.Doc) docstore.Doc {
	doc.Data = cloneData(doc.Data)
	return doc
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if m, ok := v.(map[string]any); ok {
			out[k] = cloneData(m)
			continue
		}
		out[k] = v
	}
	return out
}
