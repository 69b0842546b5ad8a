// Package bucket defines the shared bucket-list item.
package bucket

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Collection is the document-store collection holding bucket items.
const Collection = "bucketList"

// ErrEmptyContent is returned when item text is empty after trimming.
var ErrEmptyContent = errors.New("content cannot be empty")

// State is the lifecycle state of a live item. Deleted items are gone from
// the store, so there is no Deleted state to observe.
type State int

const (
	Active State = iota
	Completed
)

func (s State) String() string {
	if s == Completed {
		return "completed"
	}
	return "active"
}

// Item is one dream on the shared list. ID is assigned by the store and
// CreatedAt never changes after creation.
type Item struct {
	ID        string    `json:"id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	Completed bool      `json:"completed" yaml:"completed"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// State reports whether the item is active or completed.
func (i Item) State() State {
	if i.Completed {
		return Completed
	}
	return Active
}

// DisplayDate formats the creation date like "July 20, 2023" in loc.
// A nil loc uses the timestamp's own location.
func (i Item) DisplayDate(loc *time.Location) string {
	ts := i.CreatedAt
	if loc != nil {
		ts = ts.In(loc)
	}
	return ts.Format("January 2, 2006")
}

// NormalizeContent trims surrounding whitespace and rejects empty text.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}

// SortNewestFirst orders items by CreatedAt descending. Ties keep their
// relative order.
func SortNewestFirst(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].CreatedAt.After(items[b].CreatedAt)
	})
}

// IsNewestFirst reports whether items are ordered by CreatedAt descending.
func IsNewestFirst(items []Item) bool {
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			return false
		}
	}
	return true
}

// Find returns the item with the given id.
func Find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Stats summarises a list.
type Stats struct {
	Total     int
	Completed int
}

// Summarize counts completed items.
func Summarize(items []Item) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		if it.Completed {
			s.Completed++
		}
	}
	return s
}
