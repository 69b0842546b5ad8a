// Package dto holds the JSON bodies exchanged between the mondo server and
// its HTTP client.
package dto

import (
	"time"

	"github.com/xolan/mondo/internal/docstore"
)

// CreateDocumentRequest is the body of POST .../documents. A zero CreatedAt
// is stamped by the server.
type CreateDocumentRequest struct {
	CreatedAt time.Time       `json:"created_at,omitempty"`
	Fields    docstore.Fields `json:"fields" binding:"required"`
}

// CreateDocumentResponse returns the id assigned by the store.
type CreateDocumentResponse struct {
	ID string `json:"id"`
}

// WriteDocumentRequest is the body of PUT and PATCH on a document.
type WriteDocumentRequest struct {
	Fields docstore.Fields `json:"fields" binding:"required"`
}

// ListDocumentsResponse holds a collection in the requested order.
type ListDocumentsResponse struct {
	Documents []docstore.Document `json:"documents"`
}

// WatchResponse is a snapshot tagged with the collection's change counter.
type WatchResponse struct {
	Version   uint64              `json:"version"`
	Documents []docstore.Document `json:"documents"`
}

// ErrorResponse carries a failure message and a machine-readable code.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes
const (
	CodeNotFound   = "not_found"
	CodeInvalid    = "invalid"
	CodeClosed     = "unavailable"
	CodeInternal   = "internal"
	CodeBadRequest = "bad_request"
)
