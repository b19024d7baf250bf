package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

type txWrite struct {
	path   string
	data   map[string]any
	merge  bool
	delete bool
}

// pgTx reads committed state inside a SERIALIZABLE transaction and buffers
// writes; they apply on commit. NOTIFY is issued in the same transaction,
// so watcher notifications observe commit order.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
	db  *Storage

	writes []txWrite
}

var _ docstore.Tx = (*pgTx)(nil)

func (t *pgTx) Get(path string) (docstore.Doc, error) {
	row := t.tx.QueryRowContext(t.ctx, `
	SELECT path, data, created_at, updated_at
	FROM documents
	WHERE path = $1`, path)
	return scanDoc(row)
}

func (t *pgTx) Set(path string, data map[string]any, merge bool) {
	t.writes = append(t.writes, txWrite{path: path, data: data, merge: merge})
}

func (t *pgTx) Delete(path string) {
	t.writes = append(t.writes, txWrite{path: path, delete: true})
}

func (s *Storage) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	maxRetries := 5
	if s.cfg != nil && s.cfg.TxMaxRetries > 0 {
		maxRetries = s.cfg.TxMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		txRetries.Inc()
		logger.Log.Warn("transaction conflict, retrying", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("%w: transaction conflict persisted: %v", errors.ErrTransient, lastErr)
}

func (s *Storage) runOnce(ctx context.Context, fn func(tx docstore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback() // The rollback will be ignored if the tx has been committed later in the function.

	ptx := &pgTx{ctx: ctx, tx: tx, db: s}
	if err := fn(ptx); err != nil {
		return err
	}

	now := time.Now().UTC()
	touched := make(map[string]bool)
	for _, w := range ptx.writes {
		if w.delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, w.path); err != nil {
				return err
			}
		} else if err := applyWrite(ctx, tx, w, now); err != nil {
			return err
		}
		touched[docstore.ParentCollection(w.path)] = true
	}
	for col := range touched {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, col); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func applyWrite(ctx context.Context, tx *sql.Tx, w txWrite, now time.Time) error {
	var current map[string]any
	var raw []byte
	err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = $1 FOR UPDATE`, w.path).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// create
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("failed to decode document %s: %w", w.path, err)
		}
		current = decodeTimes(current)
	}

	resolved := docstore.ResolveSentinels(current, w.data, now)
	var next map[string]any
	if w.merge && current != nil {
		next = make(map[string]any, len(current)+len(resolved))
		for k, v := range current {
			next[k] = v
		}
		for k, v := range resolved {
			next[k] = v
		}
	} else {
		next = resolved
	}

	encoded, err := json.Marshal(encodeTimes(next))
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", w.path, err)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO documents(path, collection, data, created_at, updated_at)
	VALUES($1, $2, $3, $4, $4)
	ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		w.path, docstore.ParentCollection(w.path), encoded, now)
	return err
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
