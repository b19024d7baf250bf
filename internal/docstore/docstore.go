// Package docstore defines the capability contract for the remote
// document store: filtered/ordered collection queries, one-shot and live
// reads, document writes, and multi-document atomic transactions with
// conflict retry. Implementations own all durability and consistency;
// callers hold only transient reconciled copies.
package docstore

import (
	"context"
	"strings"
	"time"

	"github.com/askline-dev/askline/shared/errors"
)

// Doc is a stored document. Data is an open key/value bag; typed decoding
// happens at the domain boundary.
type Doc struct {
	Path       string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Id returns the last path segment.
func (d Doc) Id() string {
	i := strings.LastIndexByte(d.Path, '/')
	return d.Path[i+1:]
}

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query addresses a collection (possibly a subcollection path like
// "questions/q1/comments") with equality / array-membership filters and
// single-field ordering.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
}

func Collection(path string) Query {
	return Query{Collection: path}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{field, op, value})
	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Watcher is a live query handle. Snapshots delivers the complete current
// ordered result set on every relevant commit, in an order consistent with
// store commit order. Cancel is idempotent; after the first call no further
// snapshots are delivered and the channel is closed. Err reports why the
// stream ended when it was not cancelled.
type Watcher interface {
	Snapshots() <-chan []Doc
	Cancel()
	Err() error
}

// Tx buffers writes against a consistent read view. Reads through Tx see
// committed state only; buffered writes apply atomically at commit.
type Tx interface {
	Get(path string) (Doc, error)
	Set(path string, data map[string]any, merge bool)
	Delete(path string)
}

// Client is the store gateway. One instance is constructed at startup and
// passed in wherever store access is needed; there is no ambient global.
type Client interface {
	Get(ctx context.Context, path string) (Doc, error)
	List(ctx context.Context, q Query) ([]Doc, error)
	// Create adds a document with a generated id and returns its path.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set writes the document at path; with merge, existing fields not
	// present in data are kept and the document is created if absent.
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	Delete(ctx context.Context, path string) error
	Watch(ctx context.Context, q Query) (Watcher, error)
	// RunTransaction executes fn with read-then-conditional-write
	// semantics, retrying on conflict. A retry-exhausted conflict
	// surfaces as errors.ErrTransient.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// NotFoundErr marks a missing document inside transactions, where callers
// branch on existence rather than fail.
var NotFoundErr = errors.ErrNotFound

// DocPath joins path segments into a document path.
func DocPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// IsDocPath reports whether path addresses a document (even number of
// segments) rather than a collection.
func IsDocPath(path string) bool {
	return strings.Count(path, "/")%2 == 1
}

// ParentCollection returns the collection a document path belongs to.
func ParentCollection(docPath string) string {
	i := strings.LastIndexByte(docPath, '/')
	if i < 0 {
		return ""
	}
	return docPath[:i]
}
