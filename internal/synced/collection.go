// Package synced mirrors a bucket list collection from a document store.
//
// A Collection holds the last snapshot delivered by the store's live query
// and nothing else. Mutations go straight to the store; their effect shows up
// locally only when the next snapshot arrives.
package synced

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/docstore"
)

// DefaultTimeout bounds each store call made by a mutation.
const DefaultTimeout = 10 * time.Second

// Document field names.
const (
	FieldContent   = "content"
	FieldCompleted = "completed"
)

// Unsubscribe detaches a listener registered with Subscribe.
type Unsubscribe func()

// Collection is a live, read-only mirror of one store collection plus the
// mutations that can be sent to it.
type Collection struct {
	store   docstore.Store
	name    string
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	// life guards Start and Stop.
	life   sync.Mutex
	cancel context.CancelFunc
	unsub  docstore.Unsubscribe

	// notify serialises listener calls.
	notify sync.Mutex

	mu         sync.RWMutex
	running    bool
	loaded     bool
	items      []bucket.Item
	listener   func([]bucket.Item)
	listenerID uint64
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger for store failures and dropped documents.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-call store timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Collection) {
		c.timeout = d
	}
}

// WithNow overrides the clock used to stamp new items.
func WithNow(now func() time.Time) Option {
	return func(c *Collection) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Collection over the named store collection. Call Start to
// begin mirroring.
func New(store docstore.Store, name string, opts ...Option) *Collection {
	c := &Collection{
		store:   store,
		name:    name,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the store collection name.
func (c *Collection) Name() string {
	return c.name
}

// Start installs the live query. The first snapshot is applied before Start
// returns. The subscription lasts until Stop is called or ctx is done.
func (c *Collection) Start(ctx context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()

	if c.unsub != nil {
		return ErrAlreadyStarted
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	q := docstore.Query{Collection: c.name, Direction: docstore.Descending}
	unsub, err := c.store.Watch(watchCtx, q, c.apply)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return c.storeError("subscribe", "", err)
	}

	c.cancel = cancel
	c.unsub = unsub
	return nil
}

// Stop detaches the live query. Snapshots arriving afterwards are ignored.
// The last snapshot stays readable through Items. Stop is idempotent.
func (c *Collection) Stop() {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Running reports whether the live query is installed.
func (c *Collection) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Subscribe registers onChange as the listener for new snapshots, replacing
// any previous listener. If a snapshot has already been received, onChange
// is called with it before Subscribe returns. onChange must not block and
// must not call Subscribe.
func (c *Collection) Subscribe(onChange func([]bucket.Item)) Unsubscribe {
	c.notify.Lock()
	defer c.notify.Unlock()

	c.mu.Lock()
	c.listenerID++
	id := c.listenerID
	c.listener = onChange
	loaded := c.loaded
	items := c.copyItems()
	c.mu.Unlock()

	if loaded && onChange != nil {
		onChange(items)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.listenerID == id {
			c.listener = nil
		}
	}
}

// Items returns a copy of the last snapshot, newest first.
func (c *Collection) Items() []bucket.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyItems()
}

// Loaded reports whether at least one snapshot has been received.
func (c *Collection) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the item with id from the last snapshot.
func (c *Collection) Get(id string) (bucket.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bucket.Find(c.items, id)
}

// Stats summarises the last snapshot.
func (c *Collection) Stats() bucket.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bucket.Summarize(c.items)
}

// Create adds a new, not yet completed item stamped with the current time.
// It returns once the store has accepted the write; the item appears in
// Items with the next snapshot.
func (c *Collection) Create(ctx context.Context, content string) (bucket.Item, error) {
	content, err := bucket.NormalizeContent(content)
	if err != nil {
		return bucket.Item{}, &ValidationError{Field: FieldContent, Reason: "must not be empty"}
	}

	item := bucket.Item{Content: content, CreatedAt: c.now()}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	id, err := c.store.Add(ctx, c.name, item.CreatedAt, docstore.Fields{
		FieldContent:   item.Content,
		FieldCompleted: false,
	})
	if err != nil {
		return bucket.Item{}, c.storeError("create", "", err)
	}

	item.ID = id
	return item, nil
}

// ToggleComplete flips the completed flag of an item in the last snapshot.
func (c *Collection) ToggleComplete(ctx context.Context, id string) error {
	item, ok := c.Get(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	return c.update(ctx, "toggle", id, docstore.Fields{FieldCompleted: !item.Completed})
}

// SetCompleted sets the completed flag of an item in the last snapshot.
func (c *Collection) SetCompleted(ctx context.Context, id string, completed bool) error {
	if _, ok := c.Get(id); !ok {
		return &NotFoundError{ID: id}
	}
	return c.update(ctx, "complete", id, docstore.Fields{FieldCompleted: completed})
}

// EditContent replaces the content of an item in the last snapshot.
func (c *Collection) EditContent(ctx context.Context, id, content string) error {
	content, err := bucket.NormalizeContent(content)
	if err != nil {
		return &ValidationError{Field: FieldContent, Reason: "must not be empty"}
	}
	if _, ok := c.Get(id); !ok {
		return &NotFoundError{ID: id}
	}
	return c.update(ctx, "edit", id, docstore.Fields{FieldContent: content})
}

// Delete removes an item in the last snapshot at the store.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if _, ok := c.Get(id); !ok {
		return &NotFoundError{ID: id}
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Delete(ctx, c.name, id); err != nil {
		return c.storeError("delete", id, err)
	}
	return nil
}

func (c *Collection) update(ctx context.Context, op, id string, fields docstore.Fields) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Update(ctx, c.name, id, fields); err != nil {
		return c.storeError(op, id, err)
	}
	return nil
}

// apply replaces the local mirror with a snapshot. It is the only writer of
// items.
func (c *Collection) apply(docs []docstore.Document) {
	items := make([]bucket.Item, 0, len(docs))
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			c.logger.Warn("dropping undecodable document",
				slog.String("collection", c.name),
				slog.String("id", doc.ID),
				slog.Any("error", err))
			continue
		}
		items = append(items, item)
	}
	bucket.SortNewestFirst(items)

	c.notify.Lock()
	defer c.notify.Unlock()

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.items = items
	c.loaded = true
	listener := c.listener
	snapshot := c.copyItems()
	c.mu.Unlock()

	if listener != nil {
		listener(snapshot)
	}
}

// copyItems returns a copy of items. Callers hold mu.
func (c *Collection) copyItems() []bucket.Item {
	out := make([]bucket.Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Collection) storeError(op, id string, err error) error {
	c.logger.Error("store operation failed",
		slog.String("collection", c.name),
		slog.String("op", op),
		slog.String("id", id),
		slog.Any("error", err))
	return &StoreError{Op: op, ID: id, Err: err}
}

var errFieldType = errors.New("unexpected field type")

func decode(doc docstore.Document) (bucket.Item, error) {
	content, ok := doc.Fields[FieldContent].(string)
	if !ok {
		return bucket.Item{}, fmt.Errorf("%s: %w", FieldContent, errFieldType)
	}

	var completed bool
	if v, present := doc.Fields[FieldCompleted]; present {
		if completed, ok = v.(bool); !ok {
			return bucket.Item{}, fmt.Errorf("%s: %w", FieldCompleted, errFieldType)
		}
	}

	return bucket.Item{
		ID:        doc.ID,
		Content:   content,
		Completed: completed,
		CreatedAt: doc.CreatedAt,
	}, nil
}
