// Package pg implements the docstore contract on PostgreSQL: one JSONB
// documents table, serializable transactions with conflict retry, and live
// queries via LISTEN/NOTIFY.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const notifyChannel = "askline_documents"

type Storage struct {
	db       *sql.DB
	listener *pq.Listener
	cfg      *config.Public

	mu       sync.Mutex
	watchers map[int64]*watcher
	nextID   int64
	closed   bool
}

var _ docstore.Client = (*Storage)(nil)

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to db")
	connStr := ConnString(&cfg.Private.Pg)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to db")

	s := &Storage{
		db:       db,
		cfg:      &cfg.Public,
		watchers: make(map[int64]*watcher),
	}
	s.listener = pq.NewListener(connStr, 2*time.Second, time.Minute, s.listenerEvent)
	if err := s.listener.Listen(notifyChannel); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}
	go s.dispatch(ctx)
	return s, nil
}

func ConnString(pgCfg *config.Pg) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pgCfg.Host, pgCfg.Port, pgCfg.User, pgCfg.Password, pgCfg.Dbname)
}

// Migrate applies embedded schema migrations.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watchers := s.watchers
	s.watchers = make(map[int64]*watcher)
	s.mu.Unlock()

	for _, w := range watchers {
		w.stop(nil)
	}
	s.listener.Close()
	return s.db.Close()
}

func (s *Storage) Get(ctx context.Context, path string) (docstore.Doc, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT path, data, created_at, updated_at
	FROM documents
	WHERE path = $1`, path)
	return scanDoc(row)
}

func (s *Storage) List(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	query, args := compileQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Doc
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return docs, nil
}

func (s *Storage) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	path := docstore.DocPath(collection, uuid.NewString())
	if err := s.Set(ctx, path, data, false); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Storage) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	return s.RunTransaction(ctx, func(tx docstore.Tx) error {
		tx.Set(path, data, merge)
		return nil
	})
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

type docScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row docScanner) (docstore.Doc, error) {
	var doc docstore.Doc
	var raw []byte
	if err := row.Scan(&doc.Path, &raw, &doc.CreateTime, &doc.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return docstore.Doc{}, errors.ErrNotFound
		}
		return docstore.Doc{}, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return docstore.Doc{}, fmt.Errorf("failed to decode document %s: %w", doc.Path, err)
	}
	doc.Data = decodeTimes(data)
	return doc, nil
}
