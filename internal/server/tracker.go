package server

import (
	"context"
	"sync"

	"github.com/xolan/mondo/internal/docstore"
)

// tracker mirrors one collection through a store live query and counts the
// snapshots it has seen. Long-poll requests wait on changed.
type tracker struct {
	mu      sync.Mutex
	version uint64
	docs    []docstore.Document
	changed chan struct{}
	unsub   docstore.Unsubscribe
}

func (t *tracker) update(docs []docstore.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
	t.docs = docs
	close(t.changed)
	t.changed = make(chan struct{})
}

// snapshot returns the current version, documents and a channel closed on
// the next change.
func (t *tracker) snapshot() (uint64, []docstore.Document, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version, t.docs, t.changed
}

// trackers lazily installs one live query per collection.
type trackers struct {
	store docstore.Store
	ctx   context.Context

	mu    sync.Mutex
	byCol map[string]*tracker
}

func newTrackers(ctx context.Context, store docstore.Store) *trackers {
	return &trackers{store: store, ctx: ctx, byCol: make(map[string]*tracker)}
}

func (ts *trackers) get(collection string) (*tracker, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t, ok := ts.byCol[collection]; ok {
		return t, nil
	}

	t := &tracker{changed: make(chan struct{})}
	unsub, err := ts.store.Watch(ts.ctx, docstore.Query{Collection: collection}, t.update)
	if err != nil {
		return nil, err
	}
	t.unsub = unsub
	ts.byCol[collection] = t
	return t, nil
}

func (ts *trackers) close() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for name, t := range ts.byCol {
		t.unsub()
		delete(ts.byCol, name)
	}
}
