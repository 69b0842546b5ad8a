// Package pgstore implements docstore.Store on PostgreSQL.
//
// Documents live in one jsonb table keyed by (collection, id). Writes send a
// NOTIFY on the changes channel in the same transaction; every store LISTENs
// on it to refresh live queries for changes made by other processes.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xolan/mondo/internal/docstore"
)

// Channel is the NOTIFY channel used for change messages.
const Channel = "mondo_changes"

// Options configures Open.
type Options struct {
	DSN    string
	Logger *slog.Logger
	// SkipMigrations leaves the schema alone.
	SkipMigrations bool
}

// Store is a docstore.Store backed by PostgreSQL.
type Store struct {
	db     *pgxpool.Pool
	origin string
	logger *slog.Logger
	feed   *docstore.Feed

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

type changeMessage struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

// Open connects, migrates the schema and starts listening for changes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !opts.SkipMigrations {
		if err := Migrate(opts.DSN); err != nil {
			return nil, err
		}
	}

	pool, err := newPool(ctx, opts.DSN)
	if err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:     pool,
		origin: uuid.NewString(),
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.feed = docstore.NewFeed(s.List, logger)
	go s.listen(listenCtx)
	return s, nil
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

var _ docstore.Store = (*Store)(nil)

// Add implements docstore.Store.
func (s *Store) Add(ctx context.Context, collection string, createdAt time.Time, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if s.isClosed() {
		return "", docstore.ErrClosed
	}

	id := uuid.NewString()
	err := s.write(ctx, collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, created_at, fields)
			VALUES ($1, $2, $3, $4)`,
			collection, id, createdAt, map[string]any(fields.Clone()))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}

	return s.write(ctx, collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, created_at, fields)
			VALUES ($1, $2, NOW(), $3)
			ON CONFLICT (collection, id)
			DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`,
			collection, id, map[string]any(fields.Clone()))
		return err
	})
}

// Update implements docstore.Store. Fields are merged at the top level.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}

	return s.write(ctx, collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE documents SET fields = fields || $3::jsonb, updated_at = NOW()
			WHERE collection = $1 AND id = $2`,
			collection, id, map[string]any(fields.Clone()))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}

	return s.write(ctx, collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return docstore.Document{}, err
	}
	if s.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}

	var doc docstore.Document
	var fields map[string]any
	err := s.db.QueryRow(ctx, `
		SELECT id, created_at, fields FROM documents
		WHERE collection = $1 AND id = $2`, collection, id).Scan(&doc.ID, &doc.CreatedAt, &fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("pg get: %w", err)
	}
	doc.Fields = docstore.Fields(fields).Clone()
	return doc, nil
}

// List implements docstore.Store.
func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}

	query := `SELECT id, created_at, fields FROM documents WHERE collection = $1
		ORDER BY created_at DESC, id DESC`
	if q.Direction == docstore.Ascending {
		query = `SELECT id, created_at, fields FROM documents WHERE collection = $1
			ORDER BY created_at ASC, id ASC`
	}

	rows, err := s.db.Query(ctx, query, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("pg list: %w", err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var doc docstore.Document
		var fields map[string]any
		if err := rows.Scan(&doc.ID, &doc.CreatedAt, &fields); err != nil {
			return nil, fmt.Errorf("pg list: %w", err)
		}
		doc.Fields = docstore.Fields(fields).Clone()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg list: %w", err)
	}
	return docs, nil
}

// Watch implements docstore.Store.
func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}
	return s.feed.Watch(ctx, q, fn)
}

// Close stops listening and closes the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.feed.Close()
	s.db.Close()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// write runs fn and the change notification in one transaction, then
// refreshes local live queries.
func (s *Store) write(ctx context.Context, collection string, fn func(tx pgx.Tx) error) error {
	payload, err := json.Marshal(changeMessage{Origin: s.origin, Collection: collection})
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload))
		return err
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("pg write: %w", err)
	}

	s.feed.Notify(ctx, collection)
	return nil
}

// listen holds one connection in LISTEN mode and reconnects with backoff
// when it drops.
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)

	backoff := time.Second
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("change listener stopped, reconnecting",
			slog.Any("error", err),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change changeMessage
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			s.logger.Warn("ignoring malformed change message", slog.String("payload", n.Payload))
			continue
		}
		if change.Origin == s.origin || !s.feed.Watching(change.Collection) {
			continue
		}
		s.feed.Notify(ctx, change.Collection)
	}
}

func validateRef(collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return docstore.ValidateID(id)
}
