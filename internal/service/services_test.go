package service

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/gate"
)

// newTestServices builds services over a memory store.
func newTestServices(t *testing.T) *Services {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendMemory
	services := NewServicesWithStore(filepath.Join(t.TempDir(), "config.toml"), cfg, docstore.NewMemoryStore(), nil, gate.WithCost(bcrypt.MinCost))
	t.Cleanup(func() { _ = services.Close() })
	return services
}

func TestNewServicesWithStore(t *testing.T) {
	services := newTestServices(t)

	if services.Config == nil {
		t.Error("expected non-nil Config service")
	}
	if services.Clock == nil {
		t.Error("expected non-nil Clock service")
	}
	if services.Bucket == nil {
		t.Error("expected non-nil Bucket service")
	}
	if services.Security == nil {
		t.Error("expected non-nil Security service")
	}
	if services.Store == nil {
		t.Error("expected non-nil store")
	}
	if services.Logger == nil {
		t.Error("expected a default logger")
	}
}

func TestNewServices_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendMemory

	services, err := NewServices(context.Background(), filepath.Join(t.TempDir(), "config.toml"), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer services.Close()

	if _, ok := services.Store.(*docstore.MemoryStore); !ok {
		t.Errorf("expected a memory store, got %T", services.Store)
	}
}

func TestNewServices_InvalidStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendPostgres

	if _, err := NewServices(context.Background(), "config.toml", cfg, nil); err == nil {
		t.Error("expected error for postgres backend without a DSN")
	}
}

func TestServicesIntegration(t *testing.T) {
	services := newTestServices(t)
	ctx := context.Background()

	if err := services.Bucket.Unlock(ctx, services.Security, "0720"); err != nil {
		t.Fatalf("unlock with default PIN: %v", err)
	}

	if _, err := services.Bucket.Add(ctx, "Watch the sunrise at Seongsan"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := services.Bucket.Toggle(ctx, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	result, err := services.Bucket.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Stats.Total != 1 || result.Stats.Completed != 1 {
		t.Errorf("expected 1 completed item, got %+v", result.Stats)
	}

	if err := services.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if services.Bucket.Collection().Running() {
		t.Error("expected live list to be stopped after Close")
	}
}

func TestNewServicesWithStore_GateOptions(t *testing.T) {
	services := newTestServices(t)
	ctx := context.Background()

	if err := services.Security.Change(ctx, gate.DefaultPIN, "2468"); err != nil {
		t.Fatalf("Change() error = %v", err)
	}

	doc, err := services.Store.Get(ctx, gate.Collection, gate.DocumentID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cost, err := bcrypt.Cost([]byte(doc.Fields.String("pin_hash")))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}
