package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/dto"
)

func (s *Server) listDocuments(c *gin.Context) {
	q := docstore.Query{
		Collection: c.Param("collection"),
		Direction:  docstore.ParseDirection(c.Query("order")),
	}
	docs, err := s.store.List(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListDocumentsResponse{Documents: docs})
}

func (s *Server) createDocument(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}

	id, err := s.store.Add(c.Request.Context(), c.Param("collection"), req.CreatedAt, req.Fields)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateDocumentResponse{ID: id})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.store.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) setDocument(c *gin.Context) {
	var req dto.WriteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.store.Set(c.Request.Context(), c.Param("collection"), c.Param("id"), req.Fields); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateDocument(c *gin.Context) {
	var req dto.WriteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.store.Update(c.Request.Context(), c.Param("collection"), c.Param("id"), req.Fields); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("collection"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// watch answers with the collection snapshot as soon as its version differs
// from ?after, or after ?wait with the current snapshot. A client ahead of
// the server saw a previous server run and gets an answer at once.
func (s *Server) watch(c *gin.Context) {
	after, err := parseAfter(c.Query("after"))
	if err != nil {
		badRequest(c, err)
		return
	}
	wait, err := parseWait(c.Query("wait"))
	if err != nil {
		badRequest(c, err)
		return
	}

	collection := c.Param("collection")
	if err := docstore.ValidateCollection(collection); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.trackers.get(collection)
	if err != nil {
		s.fail(c, err)
		return
	}

	version, docs, changed := t.snapshot()
	if version == after {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-changed:
			version, docs, _ = t.snapshot()
		case <-timer.C:
		case <-c.Request.Context().Done():
			return
		}
	}

	if order := docstore.ParseDirection(c.Query("order")); order == docstore.Ascending {
		sorted := make([]docstore.Document, len(docs))
		copy(sorted, docs)
		docstore.SortDocuments(sorted, order)
		docs = sorted
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	c.JSON(http.StatusOK, dto.WatchResponse{Version: version, Documents: docs})
}

func parseAfter(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseWait(s string) (time.Duration, error) {
	if s == "" {
		return DefaultWait, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		d = 0
	}
	if d > MaxWait {
		d = MaxWait
	}
	return d, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeBadRequest})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not found", Code: dto.CodeNotFound})
	case errors.Is(err, docstore.ErrInvalidCollection), errors.Is(err, docstore.ErrInvalidID):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeInvalid})
	case errors.Is(err, docstore.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeClosed})
	default:
		s.logger.Error("store request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: dto.CodeInternal})
	}
}
