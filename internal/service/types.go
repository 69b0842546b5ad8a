// Package service provides the application layer for mondo. It wraps the
// document store, the synced bucket list, the PIN gate, the clocks and the
// config, providing one API for both the CLI and TUI frontends.
package service

import "github.com/xolan/mondo/internal/bucket"

// BucketListResult contains the current bucket list
type BucketListResult struct {
	Items []bucket.Item
	Stats bucket.Stats
}
