// Package docstore defines a small document-store abstraction: named
// collections of keyed JSON-like documents with live queries.
//
// Every backend (in-memory, JSON Lines files, Redis, PostgreSQL, and the
// HTTP client for the mondo server) implements Store. A live query delivers
// the full ordered snapshot of a collection on subscription and again after
// every change; consumers replace their local view wholesale instead of
// applying diffs.
package docstore
