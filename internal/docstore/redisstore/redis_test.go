package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolan/mondo/internal/docstore"
)

func newTestStore(t *testing.T, mr *miniredis.Miniredis) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Addr: mr.Addr(), Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = Open(context.Background(), Options{Addr: addr})
	assert.ErrorContains(t, err, "redis ping")
}

func TestStore_CRUD(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestStore(t, mr)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.Add(ctx, "bucketList", base, docstore.Fields{"content": "Camping", "completed": false})
	require.NoError(t, err)
	second, err := s.Add(ctx, "bucketList", base.Add(time.Hour), docstore.Fields{"content": "Sunrise hike", "completed": false})
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:bucketList:docs"))
	assert.True(t, mr.Exists("test:bucketList:order"))

	docs, err := s.List(ctx, docstore.Query{Collection: "bucketList"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second, docs[0].ID)
	assert.Equal(t, first, docs[1].ID)
	assert.True(t, base.Equal(docs[1].CreatedAt))

	asc, err := s.List(ctx, docstore.Query{Collection: "bucketList", Direction: docstore.Ascending})
	require.NoError(t, err)
	assert.Equal(t, first, asc[0].ID)

	require.NoError(t, s.Update(ctx, "bucketList", first, docstore.Fields{"completed": true}))
	doc, err := s.Get(ctx, "bucketList", first)
	require.NoError(t, err)
	assert.True(t, doc.Fields.Bool("completed"))
	assert.Equal(t, "Camping", doc.Fields.String("content"))
	assert.True(t, base.Equal(doc.CreatedAt), "CreatedAt survives updates")

	require.NoError(t, s.Delete(ctx, "bucketList", first))
	_, err = s.Get(ctx, "bucketList", first)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	docs, err = s.List(ctx, docstore.Query{Collection: "bucketList"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStore_MissingDocuments(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestStore(t, mr)
	ctx := context.Background()

	assert.ErrorIs(t, s.Update(ctx, "bucketList", "nope", docstore.Fields{}), docstore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "bucketList", "nope"), docstore.ErrNotFound)

	docs, err := s.List(ctx, docstore.Query{Collection: "empty"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_SetKeepsCreatedAt(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestStore(t, mr)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "security", "settings", docstore.Fields{"pin_hash": "a", "extra": true}))
	before, err := s.Get(ctx, "security", "settings")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "security", "settings", docstore.Fields{"pin_hash": "b"}))
	after, err := s.Get(ctx, "security", "settings")
	require.NoError(t, err)

	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Equal(t, "b", after.Fields.String("pin_hash"))
	_, hasExtra := after.Fields["extra"]
	assert.False(t, hasExtra, "Set replaces all fields")
}

func TestStore_SkipsCorruptDocuments(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestStore(t, mr)
	ctx := context.Background()

	_, err := s.Add(ctx, "bucketList", time.Now(), docstore.Fields{"content": "ok"})
	require.NoError(t, err)
	mr.HSet("test:bucketList:docs", "broken", "{nope")
	_, err = mr.ZAdd("test:bucketList:order", 1, "broken")
	require.NoError(t, err)

	docs, err := s.List(ctx, docstore.Query{Collection: "bucketList"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStore_WatchLocalWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestStore(t, mr)
	ctx := context.Background()

	var sizes []int
	unsubscribe, err := s.Watch(ctx, docstore.Query{Collection: "bucketList"}, func(docs []docstore.Document) {
		sizes = append(sizes, len(docs))
	})
	require.NoError(t, err)
	defer unsubscribe()

	_, err = s.Add(ctx, "bucketList", time.Now(), docstore.Fields{"content": "a"})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, sizes)
}

func TestStore_WatchSeesOtherClient(t *testing.T) {
	mr := miniredis.RunT(t)
	watcher := newTestStore(t, mr)
	writer := newTestStore(t, mr)
	ctx := context.Background()

	got := make(chan int, 8)
	_, err := watcher.Watch(ctx, docstore.Query{Collection: "bucketList"}, func(docs []docstore.Document) {
		got <- len(docs)
	})
	require.NoError(t, err)
	require.Equal(t, 0, <-got)

	_, err = writer.Add(ctx, "bucketList", time.Now(), docstore.Fields{"content": "from another client"})
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("change published by another client was not delivered")
	}
}

func TestNew_SharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := New(rdb, "", nil)
	assert.Equal(t, "mondo:c:docs", s.docsKey("c"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.NoError(t, rdb.Ping(context.Background()).Err(), "client stays open when not owned")

	_, err := s.Add(context.Background(), "c", time.Now(), docstore.Fields{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}
