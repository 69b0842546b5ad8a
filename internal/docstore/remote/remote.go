// Package remote implements docstore.Store as a client of the mondo HTTP
// server. Live queries long-poll the server's per-collection version
// counter and reload the collection when it moves.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/dto"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultWait      = 25 * time.Second
	defaultUserAgent = "mondo/1.0"
	minBackoff       = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Is maps server error codes onto the docstore sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case docstore.ErrNotFound:
		return e.Code == dto.CodeNotFound
	case docstore.ErrClosed:
		return e.Code == dto.CodeClosed
	}
	return false
}

// Store talks to a mondo server.
type Store struct {
	baseURL   *url.URL
	http      *http.Client
	logger    *slog.Logger
	timeout   time.Duration
	wait      time.Duration
	userAgent string
	feed      *docstore.Feed

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// pmu guards pollers. A collection stays in the set from the moment a
	// Watch claims it until its loop sees no watchers.
	pmu     sync.Mutex
	pollers map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout should be zero or
// longer than the watch wait.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.http = c
		}
	}
}

// WithTimeout bounds every non-watch request.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithWait sets how long each watch request asks the server to hold.
func WithWait(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.wait = d
		}
	}
}

// Open builds a Store for the server at rawURL ("host:port" or a full URL).
func Open(rawURL string, opts ...Option) (*Store, error) {
	base, err := parseBaseURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		baseURL:   base,
		http:      &http.Client{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:   defaultTimeout,
		wait:      defaultWait,
		userAgent: defaultUserAgent,
		ctx:       ctx,
		cancel:    cancel,
		pollers:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = docstore.NewFeed(s.List, s.logger)
	return s, nil
}

var _ docstore.Store = (*Store)(nil)

// BaseURL returns the server address.
func (s *Store) BaseURL() string {
	return s.baseURL.String()
}

// Add implements docstore.Store.
func (s *Store) Add(ctx context.Context, collection string, createdAt time.Time, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if fields == nil {
		fields = docstore.Fields{}
	}
	var resp dto.CreateDocumentResponse
	body := dto.CreateDocumentRequest{CreatedAt: createdAt, Fields: fields}
	if err := s.call(ctx, http.MethodPost, documentsPath(collection), nil, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.write(ctx, http.MethodPut, collection, id, fields)
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.write(ctx, http.MethodPatch, collection, id, fields)
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	return s.call(ctx, http.MethodDelete, documentPath(collection, id), nil, nil, nil)
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return docstore.Document{}, err
	}
	var doc docstore.Document
	if err := s.call(ctx, http.MethodGet, documentPath(collection, id), nil, nil, &doc); err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

// List implements docstore.Store.
func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	values := url.Values{}
	values.Set("order", q.Direction.String())

	var resp dto.ListDocumentsResponse
	if err := s.call(ctx, http.MethodGet, documentsPath(q.Collection), values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Watch implements docstore.Store. The first watcher of a collection reads
// its version and starts a long-poll loop; the loop ends once the collection
// has no watchers left.
func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	if s.isClosed() {
		return nil, docstore.ErrClosed
	}

	s.pmu.Lock()
	if s.pollers[q.Collection] {
		// The running loop cannot retire while pmu is held.
		defer s.pmu.Unlock()
		return s.feed.Watch(ctx, q, fn)
	}
	s.pollers[q.Collection] = true
	s.pmu.Unlock()

	// Read the version before the snapshot so a change in between is
	// picked up by the loop.
	resp, err := s.fetchVersion(ctx, q.Collection, 0, 0)
	if err != nil {
		s.dropPoller(q.Collection)
		return nil, err
	}

	unsub, err := s.feed.Watch(ctx, q, fn)
	if err != nil {
		s.dropPoller(q.Collection)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		unsub()
		return nil, docstore.ErrClosed
	}
	s.wg.Add(1)
	go s.poll(q.Collection, resp.Version)
	return unsub, nil
}

func (s *Store) dropPoller(collection string) {
	s.pmu.Lock()
	delete(s.pollers, collection)
	s.pmu.Unlock()
}

// Close stops the long-poll loops and drops every watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.feed.Close()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) write(ctx context.Context, method, collection, id string, fields docstore.Fields) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if fields == nil {
		fields = docstore.Fields{}
	}
	return s.call(ctx, method, documentPath(collection, id), nil, dto.WriteDocumentRequest{Fields: fields}, nil)
}

// call runs one bounded request.
func (s *Store) call(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.doURL(ctx, method, &url.URL{Path: path, RawQuery: query.Encode()}, body, dest)
}

func (s *Store) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := s.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload dto.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func documentsPath(collection string) string {
	return "/api/v1/collections/" + url.PathEscape(collection) + "/documents"
}

func documentPath(collection, id string) string {
	return documentsPath(collection) + "/" + url.PathEscape(id)
}

func watchPath(collection string) string {
	return "/api/v1/collections/" + url.PathEscape(collection) + "/watch"
}

func validateRef(collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return docstore.ValidateID(id)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("remote url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse remote url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse remote url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// formatWait renders d for the wait query parameter.
func formatWait(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
