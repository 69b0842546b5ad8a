// Package redisstore implements docstore.Store on Redis.
//
// A collection is a hash of JSON documents keyed by id plus a sorted set of
// ids scored by creation time. Every write publishes the collection name on
// a shared channel so stores in other processes refresh their live queries.
package redisstore

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
	"github.com/redis/go-redis/v9"

	"github.com/xolan/mondo/internal/docstore"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "mondo"

// Options configures a connection made by Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *slog.Logger
}

// Store is a docstore.Store backed by Redis.
type Store struct {
	rdb    *redis.Client
	owned  bool
	prefix string
	origin string
	logger *slog.Logger
	now    func() time.Time
	feed   *docstore.Feed

	mu     sync.Mutex
	closed bool
	pubsub *redis.PubSub
	done   chan struct{}
}

// changeMessage is published after every write.
type changeMessage struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

// Open connects to Redis, checks the connection and starts listening for
// changes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := New(rdb, opts.Prefix, opts.Logger)
	s.owned = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{
		rdb:    rdb,
		prefix: prefix,
		origin: uuid.NewString(),
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	s.feed = docstore.NewFeed(s.List, logger)

	s.pubsub = rdb.Subscribe(context.Background(), s.channel())
	// Wait for the subscription so changes published right after New are seen.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		logger.Warn("subscribing to change channel failed", slog.Any("error", err))
	}
	cancel()
	go s.listen()
	return s
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) docsKey(collection string) string {
	return s.prefix + ":" + collection + ":docs"
}

func (s *Store) orderKey(collection string) string {
	return s.prefix + ":" + collection + ":order"
}

func (s *Store) channel() string {
	return s.prefix + ":changes"
}

// Add implements docstore.Store.
func (s *Store) Add(ctx context.Context, collection string, createdAt time.Time, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if s.isClosed() {
		return "", docstore.ErrClosed
	}

	doc := docstore.Document{ID: uuid.NewString(), CreatedAt: createdAt, Fields: fields.Clone()}
	if err := s.put(ctx, collection, doc); err != nil {
		return "", err
	}
	s.changed(ctx, collection)
	return doc.ID, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.modify(ctx, collection, id, func(existing *docstore.Document) (docstore.Document, error) {
		if existing == nil {
			return docstore.Document{ID: id, CreatedAt: s.now(), Fields: fields.Clone()}, nil
		}
		existing.Fields = fields.Clone()
		return *existing, nil
	})
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.modify(ctx, collection, id, func(existing *docstore.Document) (docstore.Document, error) {
		if existing == nil {
			return docstore.Document{}, docstore.ErrNotFound
		}
		existing.Fields = existing.Fields.Merge(fields)
		return *existing, nil
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

	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.docsKey(collection), id)
		pipe.ZRem(ctx, s.orderKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if removed.Val() == 0 {
		return docstore.ErrNotFound
	}

	s.changed(ctx, collection)
	return nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return docstore.Document{}, err
	}
	if s.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}

	raw, err := s.rdb.HGet(ctx, s.docsKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("redis get: %w", err)
	}
	return decode(raw)
}

// List implements docstore.Store.
func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}

	var ids []string
	var err error
	if q.Direction == docstore.Ascending {
		ids, err = s.rdb.ZRange(ctx, s.orderKey(q.Collection), 0, -1).Result()
	} else {
		ids, err = s.rdb.ZRevRange(ctx, s.orderKey(q.Collection), 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}

	values, err := s.rdb.HMGet(ctx, s.docsKey(q.Collection), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	docs := make([]docstore.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between the two reads.
			continue
		}
		doc, err := decode([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable document",
				slog.String("collection", q.Collection),
				slog.String("id", ids[i]),
				slog.Any("error", err))
			continue
		}
		docs = append(docs, doc)
	}
	// Scores have millisecond resolution; sort again on the full timestamp.
	docstore.SortDocuments(docs, q.Direction)
	return docs, nil
}

// Watch implements docstore.Store.
func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}
	return s.feed.Watch(ctx, q, fn)
}

// Close stops the change listener and, for stores made by Open, closes the
// client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.pubsub.Close()
	<-s.done
	s.feed.Close()
	if s.owned {
		if cerr := s.rdb.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type modifier func(existing *docstore.Document) (docstore.Document, error)

// modify runs a read-modify-write of one document under WATCH, retrying when
// another client changes the hash in between.
func (s *Store) modify(ctx context.Context, collection, id string, fn modifier) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}

	key := s.docsKey(collection)
	txf := func(tx *redis.Tx) error {
		var existing *docstore.Document
		raw, err := tx.HGet(ctx, key, id).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			doc, err := decode(raw)
			if err != nil {
				return err
			}
			existing = &doc
		}

		doc, err := fn(existing)
		if err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, doc.ID, data)
			pipe.ZAdd(ctx, s.orderKey(collection), redis.Z{Score: score(doc.CreatedAt), Member: doc.ID})
			return nil
		})
		return err
	}

	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("redis write: %w", err)
	}

	s.changed(ctx, collection)
	return nil
}

func (s *Store) put(ctx context.Context, collection string, doc docstore.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey(collection), doc.ID, data)
		pipe.ZAdd(ctx, s.orderKey(collection), redis.Z{Score: score(doc.CreatedAt), Member: doc.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

// changed refreshes local live queries and tells other processes.
func (s *Store) changed(ctx context.Context, collection string) {
	s.feed.Notify(ctx, collection)

	msg, _ := json.Marshal(changeMessage{Origin: s.origin, Collection: collection})
	if err := s.rdb.Publish(ctx, s.channel(), msg).Err(); err != nil {
		s.logger.Warn("publishing change failed",
			slog.String("collection", collection),
			slog.Any("error", err))
	}
}

// listen refreshes live queries when another process reports a change.
func (s *Store) listen() {
	defer close(s.done)

	for msg := range s.pubsub.Channel() {
		var change changeMessage
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			s.logger.Warn("ignoring malformed change message", slog.String("payload", msg.Payload))
			continue
		}
		if change.Origin == s.origin || !s.feed.Watching(change.Collection) {
			continue
		}
		s.logger.Debug("remote change", slog.String("collection", change.Collection))
		s.feed.Notify(context.Background(), change.Collection)
	}
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func decode(raw []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docstore.Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Fields == nil {
		doc.Fields = docstore.Fields{}
	}
	return doc, nil
}

func validateRef(collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return docstore.ValidateID(id)
}
