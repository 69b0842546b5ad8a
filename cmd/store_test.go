package cmd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/docstore/jsonlstore"
	"github.com/xolan/mondo/internal/service"
)

// newJSONLEnv points the test env at a real jsonl store.
func newJSONLEnv(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	dir := t.TempDir()
	env.cfg.Store.Backend = config.BackendJSONL
	env.cfg.Store.Path = dir
	env.deps.OpenServices = service.NewServices
	return env, dir
}

func TestStore_NotJSONL(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, "store", "check")
	env.expectFailure(t, "The memory backend has no local files")
}

func TestStoreCheckRepairRestore(t *testing.T) {
	env, dir := newJSONLEnv(t)

	s, err := jsonlstore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(context.Background(), bucket.Collection, time.Now(), docstore.Fields{"content": "Visit Kyoto", "completed": false}); err != nil {
		t.Fatal(err)
	}
	path := s.Path(bucket.Collection)
	_ = s.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("{not json\n")
	_ = f.Close()

	env.run(t, "store", "check")
	if env.exitCode != 1 {
		t.Fatalf("expected check to fail, got exit %d", env.exitCode)
	}
	out := env.stdout.String()
	if !strings.Contains(out, "1 valid, 1 corrupted") || !strings.Contains(out, "Line 2: {not json") {
		t.Errorf("unexpected check output:\n%s", out)
	}

	env.run(t, "store", "repair")
	env.expectOK(t)
	if !strings.Contains(env.stdout.String(), "dropped 1 corrupted line") {
		t.Errorf("unexpected repair output:\n%s", env.stdout.String())
	}

	env.run(t, "store", "check")
	env.expectOK(t)
	if !strings.Contains(env.stdout.String(), "Store is healthy") {
		t.Errorf("expected a healthy store:\n%s", env.stdout.String())
	}

	env.run(t, "store", "restore", "1")
	env.expectOK(t)
	if !strings.Contains(env.stdout.String(), "Successfully restored from backup 1") {
		t.Errorf("unexpected restore output:\n%s", env.stdout.String())
	}

	env.run(t, "store", "restore", "7")
	env.expectFailure(t, "Backup number must be between 1 and 3")
}

func TestStoreRestore_NoBackups(t *testing.T) {
	env, _ := newJSONLEnv(t)

	env.run(t, "store", "restore")
	if env.exitCode != 1 || !strings.Contains(env.stdout.String(), "No backups available") {
		t.Errorf("expected no backups, got exit %d:\n%s", env.exitCode, env.stdout.String())
	}
}

func TestFormatCorruptionWarning(t *testing.T) {
	tests := []struct {
		name     string
		warning  jsonlstore.ParseWarning
		expected string
	}{
		{
			name:     "short content",
			warning:  jsonlstore.ParseWarning{LineNumber: 5, Content: "invalid json", Error: "unexpected end of JSON"},
			expected: "  Line 5: invalid json (error: unexpected end of JSON)",
		},
		{
			name:     "long content",
			warning:  jsonlstore.ParseWarning{LineNumber: 1, Content: strings.Repeat("x", 60), Error: "bad"},
			expected: "  Line 1: " + strings.Repeat("x", 50) + "... (error: bad)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCorruptionWarning(tt.warning); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
