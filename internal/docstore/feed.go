package docstore

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Lister loads the snapshot for a query.
type Lister func(ctx context.Context, q Query) ([]Document, error)

// Feed keeps track of live queries for a backend and re-delivers snapshots
// when the backend reports a change. Backends call Notify after every write
// they observe, whether it came from this process or another one.
type Feed struct {
	list   Lister
	logger *slog.Logger

	// deliver serialises snapshot delivery so watchers never see an older
	// snapshot after a newer one.
	deliver sync.Mutex

	mu       sync.Mutex
	watchers map[uint64]*watcher
	next     uint64
}

type watcher struct {
	query Query
	fn    func([]Document)
}

// NewFeed creates a Feed that loads snapshots with list.
func NewFeed(list Lister, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Feed{
		list:     list,
		logger:   logger,
		watchers: make(map[uint64]*watcher),
	}
}

// Watch delivers the current snapshot and registers fn for later changes.
// The watcher is dropped when ctx is done.
func (f *Feed) Watch(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error) {
	if err := ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	f.deliver.Lock()
	docs, err := f.list(ctx, q)
	if err != nil {
		f.deliver.Unlock()
		return nil, err
	}

	f.mu.Lock()
	id := f.next
	f.next++
	f.watchers[id] = &watcher{query: q, fn: fn}
	f.mu.Unlock()

	fn(docs)
	f.deliver.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsubscribe()
		}()
	}
	return unsubscribe, nil
}

// Notify re-delivers the snapshot of collection to its watchers.
func (f *Feed) Notify(ctx context.Context, collection string) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	for _, id := range f.watching(collection) {
		f.mu.Lock()
		w, ok := f.watchers[id]
		f.mu.Unlock()
		if !ok {
			continue
		}

		docs, err := f.list(ctx, w.query)
		if err != nil {
			f.logger.Warn("live query refresh failed",
				slog.String("collection", collection),
				slog.Any("error", err))
			continue
		}
		w.fn(docs)
	}
}

// Watching reports whether any watcher is registered for collection.
func (f *Feed) Watching(collection string) bool {
	return len(f.watching(collection)) > 0
}

// Collections returns the distinct collections that currently have watchers.
func (f *Feed) Collections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, w := range f.watchers {
		if !seen[w.query.Collection] {
			seen[w.query.Collection] = true
			out = append(out, w.query.Collection)
		}
	}
	return out
}

// Close drops every watcher.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers = make(map[uint64]*watcher)
}

func (f *Feed) watching(collection string) []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []uint64
	for id, w := range f.watchers {
		if w.query.Collection == collection {
			ids = append(ids, id)
		}
	}
	return ids
}
