// Package jsonlstore stores each collection as a JSON Lines file in a
// directory. One line holds one document.
package jsonlstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xolan/mondo/internal/docstore"
)

// FileExt is the extension of collection files.
const FileExt = ".jsonl"

// ParseWarning represents a corrupted or malformed line.
type ParseWarning struct {
	Collection string // Collection the line belongs to
	LineNumber int    // Line number in the file (1-indexed)
	Content    string // Raw content of the corrupted line
	Error      string // Description of the parsing error
}

// ReadResult holds the documents of one file and warnings about lines that
// could not be parsed.
type ReadResult struct {
	Documents []docstore.Document
	Warnings  []ParseWarning
}

// Store is a docstore.Store backed by JSON Lines files.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
	poll   time.Duration

	// mu guards the files; writers rewrite whole files.
	mu     sync.Mutex
	closed bool
	feed   *docstore.Feed

	stop chan struct{}
	done chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for parse warnings and feed diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval makes the store watch collection files for changes made
// by other processes. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		s.poll = d
	}
}

// Open creates dir if needed and returns a Store rooted there.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = docstore.NewFeed(s.List, s.logger)

	if s.poll > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.watchFiles()
	}
	return s, nil
}

var _ docstore.Store = (*Store)(nil)

// Dir returns the directory holding the collection files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for collection.
func (s *Store) Path(collection string) string {
	return filepath.Join(s.dir, collection+FileExt)
}

// Add appends a new document to the collection file.
func (s *Store) Add(ctx context.Context, collection string, createdAt time.Time, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}

	doc := docstore.Document{ID: uuid.NewString(), CreatedAt: createdAt, Fields: fields.Clone()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", docstore.ErrClosed
	}
	err := appendDocument(s.Path(collection), doc)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.feed.Notify(ctx, collection)
	return doc.ID, nil
}

// Set creates or replaces a document, keeping CreatedAt of an existing one.
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.rewrite(ctx, collection, id, func(docs []docstore.Document, i int) ([]docstore.Document, error) {
		if i < 0 {
			return append(docs, docstore.Document{ID: id, CreatedAt: s.now(), Fields: fields.Clone()}), nil
		}
		docs[i].Fields = fields.Clone()
		return docs, nil
	})
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.rewrite(ctx, collection, id, func(docs []docstore.Document, i int) ([]docstore.Document, error) {
		if i < 0 {
			return nil, docstore.ErrNotFound
		}
		docs[i].Fields = docs[i].Fields.Merge(fields)
		return docs, nil
	})
}

// Delete removes a document. The previous file is kept as a rotated backup.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.rewrite(ctx, collection, id, func(docs []docstore.Document, i int) ([]docstore.Document, error) {
		if i < 0 {
			return nil, docstore.ErrNotFound
		}
		if err := CreateBackup(s.Path(collection)); err != nil {
			return nil, fmt.Errorf("backup before delete: %w", err)
		}
		return append(docs[:i], docs[i+1:]...), nil
	})
}

// Get returns one document.
func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}

	docs, err := s.read(collection)
	if err != nil {
		return docstore.Document{}, err
	}
	if i := indexOf(docs, id); i >= 0 {
		return docs[i], nil
	}
	return docstore.Document{}, docstore.ErrNotFound
}

// List returns every document of the collection in CreatedAt order.
func (s *Store) List(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	docs, err := s.read(q.Collection)
	if err != nil {
		return nil, err
	}
	docstore.SortDocuments(docs, q.Direction)
	return docs, nil
}

// Watch implements docstore.Store.
func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	return s.feed.Watch(ctx, q, fn)
}

// Close stops the file watcher and drops all live queries.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.done
	}
	s.feed.Close()
	return nil
}

// Read returns the documents and parse warnings of a collection file in file
// order.
func (s *Store) Read(collection string) (ReadResult, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return ReadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := ReadDocumentsWithWarnings(s.Path(collection))
	for i := range result.Warnings {
		result.Warnings[i].Collection = collection
	}
	return result, err
}

type mutation func(docs []docstore.Document, index int) ([]docstore.Document, error)

func (s *Store) rewrite(ctx context.Context, collection, id string, fn mutation) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}
	docs, err := s.read(collection)
	if err == nil {
		docs, err = fn(docs, indexOf(docs, id))
	}
	if err == nil {
		err = WriteDocuments(s.Path(collection), docs)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.feed.Notify(ctx, collection)
	return nil
}

// read loads a collection, logging and skipping corrupted lines. Callers hold mu.
func (s *Store) read(collection string) ([]docstore.Document, error) {
	result, err := ReadDocumentsWithWarnings(s.Path(collection))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	for _, w := range result.Warnings {
		s.logger.Warn("skipping corrupted line",
			slog.String("collection", collection),
			slog.Int("line", w.LineNumber),
			slog.String("error", w.Error))
	}
	return result.Documents, nil
}

func indexOf(docs []docstore.Document, id string) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func validateRef(collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return docstore.ValidateID(id)
}

// appendDocument appends a single document to path, creating the file if
// needed.
func appendDocument(path string, doc docstore.Document) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	line, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = file.Write(append(line, '\n'))
	return err
}

// ReadDocumentsWithWarnings reads every document in path. A missing file is an
// empty collection.
func ReadDocumentsWithWarnings(path string) (ReadResult, error) {
	result := ReadResult{
		Documents: []docstore.Document{},
		Warnings:  []ParseWarning{},
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		content := scanner.Text()
		if content == "" {
			continue
		}

		var doc docstore.Document
		err := json.Unmarshal([]byte(content), &doc)
		if err == nil && docstore.ValidateID(doc.ID) != nil {
			err = fmt.Errorf("invalid id %q", doc.ID)
		}
		if err != nil {
			result.Warnings = append(result.Warnings, ParseWarning{
				LineNumber: lineNumber,
				Content:    content,
				Error:      err.Error(),
			})
			continue
		}
		if doc.Fields == nil {
			doc.Fields = docstore.Fields{}
		}
		result.Documents = append(result.Documents, doc)
	}

	return result, scanner.Err()
}

// WriteDocuments replaces the contents of path with docs, writing to a
// temporary file first and renaming it into place.
func WriteDocuments(path string, docs []docstore.Document) error {
	tmpFile := path + ".tmp"
	file, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err == nil {
			_, err = w.Write(append(line, '\n'))
		}
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpFile)
			return err
		}
	}

	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, path)
}
