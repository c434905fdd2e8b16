package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "mappings.csv")

	calls := make(chan string, 10)
	watcher, err := NewFileWatcher(target, 200*time.Millisecond, func(_ context.Context, path string) error {
		calls <- path
		return nil
	})
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	select {
	case <-watcher.Ready():
	case err := <-done:
		t.Fatalf("Run() exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	if err := os.WriteFile(filepath.Join(dir, "other.csv"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(target, []byte("Target Table\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	select {
	case got := <-calls:
		if got != watcher.Path() {
			t.Fatalf("handler path = %q, want %q", got, watcher.Path())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	select {
	case got := <-calls:
		t.Fatalf("handler called twice for one burst (%q)", got)
	case <-time.After(600 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestNewFileWatcherValidation(t *testing.T) {
	handler := func(context.Context, string) error { return nil }

	if _, err := NewFileWatcher(" ", time.Second, handler); err == nil {
		t.Fatal("NewFileWatcher() error = nil for empty path")
	}
	if _, err := NewFileWatcher("a.csv", time.Second, nil); err == nil {
		t.Fatal("NewFileWatcher() error = nil for nil handler")
	}
	if _, err := NewFileWatcher("a.csv", -time.Second, handler); err == nil {
		t.Fatal("NewFileWatcher() error = nil for negative debounce")
	}
}
