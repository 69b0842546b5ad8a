package views

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xolan/mondo/internal/bucket"
)

// ItemsMsg carries a snapshot of the bucket list into the update loop.
type ItemsMsg struct {
	Items []bucket.Item
}

// itemFeed hands snapshots from the collection listener to the update
// loop. Only the latest unread snapshot is kept, so the listener never
// blocks on a slow UI.
type itemFeed struct {
	ch   chan []bucket.Item
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	unsub func()
}

func newItemFeed() *itemFeed {
	return &itemFeed{
		ch:   make(chan []bucket.Item, 1),
		done: make(chan struct{}),
	}
}

// push replaces any unread snapshot with items.
func (f *itemFeed) push(items []bucket.Item) {
	for {
		select {
		case <-f.done:
			return
		case f.ch <- items:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// next blocks until a snapshot arrives or the feed is closed.
func (f *itemFeed) next() tea.Msg {
	select {
	case items := <-f.ch:
		return ItemsMsg{Items: items}
	case <-f.done:
		return nil
	}
}

// setUnsubscribe records how to detach the listener. A feed closed in the
// meantime detaches at once.
func (f *itemFeed) setUnsubscribe(unsub func()) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		unsub()
		return
	default:
	}
	f.unsub = unsub
	f.mu.Unlock()
}

// close detaches the listener and releases a pending next.
func (f *itemFeed) close() {
	f.once.Do(func() {
		f.mu.Lock()
		unsub := f.unsub
		f.unsub = nil
		close(f.done)
		f.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}
