package memstore

import (
	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/errors"
)

type txWrite struct {
	path   string
	data   map[string]any
	merge  bool
	delete bool
}

// memTx reads committed state and buffers writes; the store applies them
// atomically under its lock after fn returns. Reads do not observe the
// transaction's own buffered writes, matching the remote store contract.
type memTx struct {
	store  *Store
	writes []txWrite
}

var _ docstore.Tx = (*memTx)(nil)

func (t *memTx) Get(path string) (docstore.Doc, error) {
	doc, ok := t.store.docs[path]
	if !ok {
		return docstore.Doc{}, errors.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (t *memTx) Set(path string, data map[string]any, merge bool) {
	t.writes = append(t.writes, txWrite{path: path, data: cloneData(data), merge: merge})
}

func (t *memTx) Delete(path string) {
	t.writes = append(t.writes, txWrite{path: path, delete: true})
}
