package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/gate"
	"github.com/xolan/mondo/internal/synced"
)

// Common errors for the bucket service
var (
	ErrEmptyRef        = errors.New("item reference cannot be empty")
	ErrRefNotFound     = errors.New("no item matches reference")
	ErrAmbiguousRef    = errors.New("reference matches more than one item")
	ErrUnknownFormat   = errors.New("unknown export format")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// BucketService runs the shared bucket list for one shell session. Every
// operation requires the session to be unlocked.
type BucketService struct {
	collection *synced.Collection
	session    gate.Session
}

// NewBucketService creates a new BucketService
func NewBucketService(collection *synced.Collection) *BucketService {
	return &BucketService{collection: collection}
}

// Collection returns the live collection for shells that render snapshots
// themselves.
func (s *BucketService) Collection() *synced.Collection {
	return s.collection
}

// Unlock verifies pin and opens the session on a match.
func (s *BucketService) Unlock(ctx context.Context, security *SecurityService, pin string) error {
	if err := security.Verify(ctx, pin); err != nil {
		return err
	}
	s.session.Unlock()
	return nil
}

// Lock closes the session and detaches the live list.
func (s *BucketService) Lock() {
	s.session.Lock()
	s.Stop()
}

// Unlocked reports whether the session is open.
func (s *BucketService) Unlocked() bool {
	return s.session.Unlocked()
}

// Start attaches the live list. It is a no-op when already attached.
func (s *BucketService) Start(ctx context.Context) error {
	if !s.session.Unlocked() {
		return ErrLocked
	}
	if s.collection.Running() {
		return nil
	}
	err := s.collection.Start(ctx)
	if errors.Is(err, synced.ErrAlreadyStarted) {
		return nil
	}
	return err
}

// Stop detaches the live list.
func (s *BucketService) Stop() {
	s.collection.Stop()
}

// List returns the current items, newest first, with their summary.
func (s *BucketService) List(ctx context.Context) (BucketListResult, error) {
	if err := s.Start(ctx); err != nil {
		return BucketListResult{}, err
	}
	items := s.collection.Items()
	return BucketListResult{
		Items: items,
		Stats: bucket.Summarize(items),
	}, nil
}

// Add creates an item.
func (s *BucketService) Add(ctx context.Context, content string) (bucket.Item, error) {
	if err := s.Start(ctx); err != nil {
		return bucket.Item{}, err
	}
	return s.collection.Create(ctx, content)
}

// Resolve finds the item ref names: a 1-based position in the list or a
// prefix of an item id.
func (s *BucketService) Resolve(ctx context.Context, ref string) (bucket.Item, error) {
	if err := s.Start(ctx); err != nil {
		return bucket.Item{}, err
	}
	return ResolveRef(s.collection.Items(), ref)
}

// Toggle flips the completed flag of the referenced item.
func (s *BucketService) Toggle(ctx context.Context, ref string) (bucket.Item, error) {
	item, err := s.Resolve(ctx, ref)
	if err != nil {
		return bucket.Item{}, err
	}
	if err := s.collection.ToggleComplete(ctx, item.ID); err != nil {
		return bucket.Item{}, err
	}
	item.Completed = !item.Completed
	return item, nil
}

// Edit replaces the content of the referenced item.
func (s *BucketService) Edit(ctx context.Context, ref, content string) (bucket.Item, error) {
	item, err := s.Resolve(ctx, ref)
	if err != nil {
		return bucket.Item{}, err
	}
	if err := s.collection.EditContent(ctx, item.ID, content); err != nil {
		return bucket.Item{}, err
	}
	item.Content, _ = bucket.NormalizeContent(content)
	return item, nil
}

// Remove deletes the referenced item.
func (s *BucketService) Remove(ctx context.Context, ref string) (bucket.Item, error) {
	item, err := s.Resolve(ctx, ref)
	if err != nil {
		return bucket.Item{}, err
	}
	if err := s.collection.Delete(ctx, item.ID); err != nil {
		return bucket.Item{}, err
	}
	return item, nil
}

// Export writes the list to w as JSON or YAML.
func (s *BucketService) Export(ctx context.Context, w io.Writer, format string) error {
	result, err := s.List(ctx)
	if err != nil {
		return err
	}
	return WriteItems(w, format, result.Items)
}

// WriteItems encodes items in format.
func WriteItems(w io.Writer, format string, items []bucket.Item) error {
	if items == nil {
		items = []bucket.Item{}
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w %q: use json or yaml", ErrUnknownFormat, format)
}

// ResolveRef matches ref against items as a 1-based index first, then as
// an id prefix.
func ResolveRef(items []bucket.Item, ref string) (bucket.Item, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return bucket.Item{}, ErrEmptyRef
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return bucket.Item{}, fmt.Errorf("%w: %d (list has %d items)", ErrIndexOutOfRange, n, len(items))
		}
		return items[n-1], nil
	}

	var matches []bucket.Item
	for _, item := range items {
		if item.ID == ref {
			return item, nil
		}
		if strings.HasPrefix(item.ID, ref) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return bucket.Item{}, fmt.Errorf("%w: %q", ErrRefNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return bucket.Item{}, fmt.Errorf("%w: %q", ErrAmbiguousRef, ref)
}
