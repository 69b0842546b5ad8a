package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Changes are delivered to watchers
// synchronously before the write returns.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]Document
	closed bool

	feed  *Feed
	now   func() time.Time
	newID func() string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryLogger sets the logger used for feed diagnostics.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.feed = NewFeed(s.List, logger)
	}
}

// WithMemoryIDs overrides id generation.
func WithMemoryIDs(newID func() string) MemoryOption {
	return func(s *MemoryStore) {
		s.newID = newID
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data:  make(map[string]map[string]Document),
		now:   time.Now,
		newID: uuid.NewString,
	}
	s.feed = NewFeed(s.List, nil)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, collection string, createdAt time.Time, fields Fields) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	id := s.newID()
	s.collection(collection)[id] = Document{ID: id, CreatedAt: createdAt, Fields: fields.Clone()}
	s.mu.Unlock()

	s.feed.Notify(ctx, collection)
	return id, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	docs := s.collection(collection)
	createdAt := s.now()
	if existing, ok := docs[id]; ok {
		createdAt = existing.CreatedAt
	}
	docs[id] = Document{ID: id, CreatedAt: createdAt, Fields: fields.Clone()}
	s.mu.Unlock()

	s.feed.Notify(ctx, collection)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	docs := s.collection(collection)
	doc, ok := docs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	doc.Fields = doc.Fields.Merge(fields)
	docs[id] = doc
	s.mu.Unlock()

	s.feed.Notify(ctx, collection)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	docs := s.collection(collection)
	if _, ok := docs[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(docs, id)
	s.mu.Unlock()

	s.feed.Notify(ctx, collection)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	if err := validateRef(collection, id); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	doc, ok := s.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, q Query) ([]Document, error) {
	if err := ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	docs := make([]Document, 0, len(s.data[q.Collection]))
	for _, doc := range s.data[q.Collection] {
		docs = append(docs, doc.Clone())
	}
	SortDocuments(docs, q.Direction)
	return docs, nil
}

// Watch implements Store.
func (s *MemoryStore) Watch(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error) {
	return s.feed.Watch(ctx, q, fn)
}

// Close implements Store. Watchers are dropped and further calls fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.feed.Close()
	return nil
}

func (s *MemoryStore) collection(name string) map[string]Document {
	docs, ok := s.data[name]
	if !ok {
		docs = make(map[string]Document)
		s.data[name] = docs
	}
	return docs
}

func validateRef(collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return ValidateID(id)
}
