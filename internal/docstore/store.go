package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Store errors
var (
	ErrNotFound          = errors.New("document not found")
	ErrClosed            = errors.New("store is closed")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrInvalidID         = errors.New("invalid document id")
)

// Fields holds a document's data. Values must survive a JSON round trip, so
// use strings, bools, float64 numbers, nested maps and slices.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	dup := make(Fields, len(f))
	for k, v := range f {
		dup[k] = v
	}
	return dup
}

// Merge returns a copy of f with every key of patch applied on top.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the string value at key, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool returns the bool value at key, or false when absent or not a bool.
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Document is one record of a collection.
type Document struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Fields    Fields    `json:"fields"`
}

// Clone returns a copy of d whose Fields can be modified independently.
func (d Document) Clone() Document {
	d.Fields = d.Fields.Clone()
	return d
}

// Direction orders query results by CreatedAt.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// ParseDirection accepts "asc" or "desc"; anything else is Descending.
func ParseDirection(s string) Direction {
	if s == "asc" {
		return Ascending
	}
	return Descending
}

// Query selects a whole collection in CreatedAt order.
type Query struct {
	Collection string
	Direction  Direction
}

// Unsubscribe detaches a live query. Calling it more than once is harmless.
type Unsubscribe func()

// Store is a document store with live queries.
//
// Watch calls fn with the current snapshot before returning and then after
// every change to the collection until the returned Unsubscribe is called or
// ctx is done. Deliveries for one store are serialised. fn must not call
// Watch on the same store.
type Store interface {
	Add(ctx context.Context, collection string, createdAt time.Time, fields Fields) (string, error)
	Set(ctx context.Context, collection, id string, fields Fields) error
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, q Query) ([]Document, error)
	Watch(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error)
	Close() error
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateCollection checks that name is a usable collection name.
func ValidateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// ValidateID checks that id is a usable document id.
func ValidateID(id string) error {
	if !collectionName.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// SortDocuments orders docs by CreatedAt in the given direction, breaking
// ties by ID so results are deterministic.
func SortDocuments(docs []Document, dir Direction) {
	sort.SliceStable(docs, func(a, b int) bool {
		ta, tb := docs[a].CreatedAt, docs[b].CreatedAt
		if ta.Equal(tb) {
			if dir == Ascending {
				return docs[a].ID < docs[b].ID
			}
			return docs[a].ID > docs[b].ID
		}
		if dir == Ascending {
			return ta.Before(tb)
		}
		return ta.After(tb)
	})
}
