package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupWatcher(t *testing.T, settle time.Duration) (*Watcher, chan string) {
	t.Helper()

	settled := make(chan string, 8)
	hook := func(ctx context.Context, path string) {
		settled <- path
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	w, err := New(settle, hook, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	t.Cleanup(cancel)

	return w, settled
}

func waitForPath(t *testing.T, settled chan string, want string) {
	t.Helper()
	select {
	case got := <-settled:
		if got != want {
			t.Errorf("settled path = %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %q to settle", want)
	}
}

func expectNoSettle(t *testing.T, settled chan string, within time.Duration) {
	t.Helper()
	select {
	case got := <-settled:
		t.Fatalf("unexpected settle for %q", got)
	case <-time.After(within):
	}
}

func TestWatcher_ImportsSettledVideo(t *testing.T) {
	dir := t.TempDir()
	w, settled := setupWatcher(t, 50*time.Millisecond)

	if err := w.AddFolder(dir); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}

	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("mdat"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	waitForPath(t, settled, path)
}

func TestWatcher_IgnoresNonVideoFiles(t *testing.T) {
	dir := t.TempDir()
	w, settled := setupWatcher(t, 50*time.Millisecond)

	if err := w.AddFolder(dir); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	expectNoSettle(t, settled, 500*time.Millisecond)
	if got := w.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestWatcher_RemoveCancelsPendingImport(t *testing.T) {
	dir := t.TempDir()
	w, settled := setupWatcher(t, 500*time.Millisecond)

	if err := w.AddFolder(dir); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}

	path := filepath.Join(dir, "partial.mp4")
	if err := os.WriteFile(path, []byte("mdat"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.PendingCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for settle timer to arm")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for w.PendingCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for settle timer to cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}

	expectNoSettle(t, settled, 700*time.Millisecond)
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w, settled := setupWatcher(t, 50*time.Millisecond)

	if err := w.AddFolder(dir); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}

	sub := filepath.Join(dir, "episodes")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !watchListContains(w, sub) {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subdirectory to be watched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	path := filepath.Join(sub, "ep01.mkv")
	if err := os.WriteFile(path, []byte("mdat"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	waitForPath(t, settled, path)
}

func TestWatcher_RemoveFolderStopsImports(t *testing.T) {
	dir := t.TempDir()
	w, settled := setupWatcher(t, 50*time.Millisecond)

	if err := w.AddFolder(dir); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}
	w.RemoveFolder(dir)

	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("mdat"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	expectNoSettle(t, settled, 500*time.Millisecond)
}

func watchListContains(w *Watcher, path string) bool {
	for _, watched := range w.fs.WatchList() {
		if watched == path {
			return true
		}
	}
	return false
}
