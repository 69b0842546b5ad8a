package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRoundTrip serves a memory store over httptest and returns a client.
func newRoundTrip(t *testing.T, opts ...Option) (*Store, *docstore.MemoryStore) {
	t.Helper()
	backing := docstore.NewMemoryStore()
	srv := server.New(backing)
	ts := httptest.NewServer(srv.Handler())

	client, err := Open(ts.URL, append([]Option{WithWait(200 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		srv.Close()
		ts.Close()
		_ = backing.Close()
	})
	return client, backing
}

type snapshots struct {
	mu   sync.Mutex
	last []docstore.Document
	n    int
}

func (s *snapshots) record(docs []docstore.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = docs
	s.n++
}

func (s *snapshots) contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.last))
	for _, d := range s.last {
		out = append(out, d.Fields.String("content"))
	}
	return out
}

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080", false},
		{"https://mondo.example.com/ignored?x=1", "https://mondo.example.com", false},
		{"  localhost:9000 ", "http://localhost:9000", false},
		{"", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCRUD_RoundTrip(t *testing.T) {
	client, backing := newRoundTrip(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := client.Add(ctx, "bucketList", created, docstore.Fields{"content": "Hike Hallasan", "completed": false})
	require.NoError(t, err)

	doc, err := backing.Get(ctx, "bucketList", id)
	require.NoError(t, err)
	assert.True(t, doc.CreatedAt.Equal(created))

	require.NoError(t, client.Update(ctx, "bucketList", id, docstore.Fields{"completed": true}))
	got, err := client.Get(ctx, "bucketList", id)
	require.NoError(t, err)
	assert.Equal(t, "Hike Hallasan", got.Fields.String("content"))
	assert.True(t, got.Fields.Bool("completed"))

	require.NoError(t, client.Set(ctx, "bucketList", "fixed-id", docstore.Fields{"content": "pinned"}))
	docs, err := client.List(ctx, docstore.Query{Collection: "bucketList", Direction: docstore.Ascending})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	require.NoError(t, client.Delete(ctx, "bucketList", id))
	_, err = client.Get(ctx, "bucketList", id)
	assert.True(t, errors.Is(err, docstore.ErrNotFound), "got %v", err)

	err = client.Delete(ctx, "bucketList", id)
	assert.True(t, errors.Is(err, docstore.ErrNotFound), "got %v", err)

	err = client.Update(ctx, "bucketList", "missing", docstore.Fields{"completed": true})
	assert.True(t, errors.Is(err, docstore.ErrNotFound), "got %v", err)
}

func TestValidationIsLocal(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	client, err := Open(ts.URL)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	_, err = client.Add(ctx, "bad name", time.Now(), nil)
	assert.ErrorIs(t, err, docstore.ErrInvalidCollection)
	err = client.Delete(ctx, "bucketList", "bad/id")
	assert.ErrorIs(t, err, docstore.ErrInvalidID)
	assert.Zero(t, hits)
}

func TestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom","code":"internal"}`))
	}))
	defer ts.Close()

	client, err := Open(ts.URL)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.List(context.Background(), docstore.Query{Collection: "bucketList"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "internal", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "boom")
	assert.NotErrorIs(t, err, docstore.ErrNotFound)
}

func TestWatch_DeliversRemoteChanges(t *testing.T) {
	client, backing := newRoundTrip(t)
	ctx := context.Background()

	_, err := backing.Add(ctx, "bucketList", time.Now().Add(-time.Hour), docstore.Fields{"content": "old"})
	require.NoError(t, err)

	var rec snapshots
	unsub, err := client.Watch(ctx, docstore.Query{Collection: "bucketList"}, rec.record)
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, []string{"old"}, rec.contents(), "initial snapshot is delivered before Watch returns")

	// A write by someone else reaches the watcher through the long poll.
	_, err = backing.Add(ctx, "bucketList", time.Now(), docstore.Fields{"content": "new"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got := rec.contents()
		return len(got) == 2 && got[0] == "new" && got[1] == "old"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatch_OwnWritesArrive(t *testing.T) {
	client, _ := newRoundTrip(t)
	ctx := context.Background()

	var rec snapshots
	unsub, err := client.Watch(ctx, docstore.Query{Collection: "bucketList"}, rec.record)
	require.NoError(t, err)
	defer unsub()

	_, err = client.Add(ctx, "bucketList", time.Now(), docstore.Fields{"content": "mine"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got := rec.contents()
		return len(got) == 1 && got[0] == "mine"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatch_LoopRetiresAfterUnsubscribe(t *testing.T) {
	client, _ := newRoundTrip(t)

	var rec snapshots
	unsub, err := client.Watch(context.Background(), docstore.Query{Collection: "bucketList"}, rec.record)
	require.NoError(t, err)
	unsub()

	assert.Eventually(t, func() bool {
		client.pmu.Lock()
		defer client.pmu.Unlock()
		return !client.pollers["bucketList"]
	}, 3*time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	client, _ := newRoundTrip(t)
	ctx := context.Background()

	var rec snapshots
	_, err := client.Watch(ctx, docstore.Query{Collection: "bucketList"}, rec.record)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = client.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not stop the poll loop")
	}

	_, err = client.List(ctx, docstore.Query{Collection: "bucketList"})
	assert.ErrorIs(t, err, docstore.ErrClosed)
	_, err = client.Watch(ctx, docstore.Query{Collection: "bucketList"}, rec.record)
	assert.ErrorIs(t, err, docstore.ErrClosed)
	assert.NoError(t, client.Close())
}
