package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/synced"
)

func unlockedServices(t *testing.T) *Services {
	t.Helper()
	services := newTestServices(t)
	if err := services.Bucket.Unlock(context.Background(), services.Security, "0720"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	return services
}

func TestBucketService_Locked(t *testing.T) {
	services := newTestServices(t)
	ctx := context.Background()

	if _, err := services.Bucket.List(ctx); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked from List, got %v", err)
	}
	if _, err := services.Bucket.Add(ctx, "x"); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked from Add, got %v", err)
	}

	if err := services.Bucket.Unlock(ctx, services.Security, "9999"); !errors.Is(err, ErrWrongPIN) {
		t.Errorf("expected ErrWrongPIN, got %v", err)
	}
	if services.Bucket.Unlocked() {
		t.Error("wrong PIN should not unlock")
	}
}

func TestBucketService_AddListNewestFirst(t *testing.T) {
	services := unlockedServices(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		if _, err := services.Bucket.Add(ctx, content); err != nil {
			t.Fatalf("add %q: %v", content, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	result, err := services.Bucket.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, item := range result.Items {
		got = append(got, item.Content)
	}
	if strings.Join(got, ",") != "third,second,first" {
		t.Errorf("expected newest first, got %v", got)
	}
	if result.Stats.Total != 3 || result.Stats.Completed != 0 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
}

func TestBucketService_AddEmpty(t *testing.T) {
	services := unlockedServices(t)

	_, err := services.Bucket.Add(context.Background(), "   ")
	if !synced.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBucketService_ToggleEditRemove(t *testing.T) {
	services := unlockedServices(t)
	ctx := context.Background()

	item, err := services.Bucket.Add(ctx, "Learn to surf")
	if err != nil {
		t.Fatal(err)
	}

	toggled, err := services.Bucket.Toggle(ctx, item.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Completed {
		t.Error("expected toggled item to be completed")
	}

	edited, err := services.Bucket.Edit(ctx, "1", "  Learn to surf in Yangyang  ")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Content != "Learn to surf in Yangyang" {
		t.Errorf("expected trimmed content, got %q", edited.Content)
	}

	got, ok := services.Bucket.Collection().Get(item.ID)
	if !ok {
		t.Fatal("item missing from live list")
	}
	if !got.Completed || got.Content != "Learn to surf in Yangyang" {
		t.Errorf("live list not updated: %+v", got)
	}

	removed, err := services.Bucket.Remove(ctx, item.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ID != item.ID {
		t.Errorf("removed wrong item %q", removed.ID)
	}
	if len(services.Bucket.Collection().Items()) != 0 {
		t.Error("expected empty list after remove")
	}
}

func TestResolveRef(t *testing.T) {
	items := []bucket.Item{
		{ID: "abc123", Content: "one"},
		{ID: "abd456", Content: "two"},
		{ID: "ff", Content: "three"},
		{ID: "ffee", Content: "four"},
	}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{"1", "one", nil},
		{"4", "four", nil},
		{"0", "", ErrIndexOutOfRange},
		{"5", "", ErrIndexOutOfRange},
		{"abc", "one", nil},
		{"ab", "", ErrAmbiguousRef},
		{"ff", "three", nil},
		{"ffe", "four", nil},
		{"zz", "", ErrRefNotFound},
		{"  ", "", ErrEmptyRef},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ResolveRef(items, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Content != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Content)
			}
		})
	}
}

func TestWriteItems(t *testing.T) {
	created := time.Date(2023, 7, 20, 0, 0, 0, 0, time.UTC)
	items := []bucket.Item{{ID: "a1", Content: "Jeju", Completed: true, CreatedAt: created}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteItems(&buf, "json", items); err != nil {
			t.Fatal(err)
		}
		var decoded []bucket.Item
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("decode: %v\n%s", err, buf.String())
		}
		if len(decoded) != 1 || decoded[0].Content != "Jeju" || !decoded[0].Completed {
			t.Errorf("unexpected export %+v", decoded)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteItems(&buf, "YAML", items); err != nil {
			t.Fatal(err)
		}
		var decoded []map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("decode: %v\n%s", err, buf.String())
		}
		if len(decoded) != 1 || decoded[0]["content"] != "Jeju" || decoded[0]["completed"] != true {
			t.Errorf("unexpected export %+v", decoded)
		}
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteItems(&buf, "", nil); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("expected [], got %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		err := WriteItems(&bytes.Buffer{}, "csv", items)
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})
}

func TestBucketService_Export(t *testing.T) {
	services := unlockedServices(t)
	ctx := context.Background()

	if _, err := services.Bucket.Add(ctx, "Go camping"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := services.Bucket.Export(ctx, &buf, FormatJSON); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "Go camping") {
		t.Errorf("expected export to contain item, got %s", buf.String())
	}
}

func TestBucketService_LockStops(t *testing.T) {
	services := unlockedServices(t)
	ctx := context.Background()

	if _, err := services.Bucket.List(ctx); err != nil {
		t.Fatal(err)
	}
	services.Bucket.Lock()

	if services.Bucket.Unlocked() {
		t.Error("expected session to be locked")
	}
	if services.Bucket.Collection().Running() {
		t.Error("expected live list to stop on Lock")
	}
}
