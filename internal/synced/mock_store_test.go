package synced

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xolan/mondo/internal/docstore"
)

// mockStore is a testify mock of docstore.Store. Unexpected calls panic,
// which fails the test.
type mockStore struct {
	mock.Mock
}

var _ docstore.Store = (*mockStore)(nil)

func (m *mockStore) Add(ctx context.Context, collection string, createdAt time.Time, fields docstore.Fields) (string, error) {
	args := m.Called(ctx, collection, createdAt, fields)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return m.Called(ctx, collection, id, fields).Error(0)
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return m.Called(ctx, collection, id, fields).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	return m.Called(ctx, collection, id).Error(0)
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	args := m.Called(ctx, collection, id)
	return args.Get(0).(docstore.Document), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	args := m.Called(ctx, q)
	docs, _ := args.Get(0).([]docstore.Document)
	return docs, args.Error(1)
}

// Watch delivers the documents passed to On("Watch").Return(docs, err)
// synchronously, like the real backends do.
func (m *mockStore) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	args := m.Called(ctx, q, fn)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	docs, _ := args.Get(0).([]docstore.Document)
	fn(docs)
	return func() {}, nil
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
