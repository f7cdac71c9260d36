package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startSource starts an FSNotifySource on root, skipping the test where
// notifications are unavailable.
func startSource(t *testing.T, root string) *FSNotifySource {
	t.Helper()
	source, err := NewFSNotifySource(nil)
	if err != nil {
		t.Skipf("Notifications unavailable: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		source.Close()
	})
	if err := source.Start(ctx, []string{root}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Give the watcher a moment to initialize
	time.Sleep(100 * time.Millisecond)
	return source
}

// awaitEvent waits for an event matching fn, trying a few times
func awaitEvent(t *testing.T, source *FSNotifySource, fn func(Event) bool) bool {
	t.Helper()
	for i := 0; i < 10; i++ { // Try a few times to get the event
		select {
		case ev := <-source.Events():
			t.Logf("Received event: %s for %s (dest %q, dir %v)", ev.Kind, ev.Path, ev.Dest, ev.IsDir)
			if fn(ev) {
				return true
			}
		case <-time.After(500 * time.Millisecond):
			// Continue to next attempt
		}
	}
	return false
}

// TestFSNotifySourceWriteAndRemove tests create, modify and delete notifications
func TestFSNotifySourceWriteAndRemove(t *testing.T) {
	root := t.TempDir()
	source := startSource(t, root)

	file := filepath.Join(root, "test1.txt")
	if err := os.WriteFile(file, []byte("test1"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Kind == EventWrite && ev.Path == file && !ev.IsDir }) {
		t.Errorf("Did not receive write event for %s", file)
	}

	if err := os.Remove(file); err != nil {
		t.Fatalf("Failed to remove test file: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Kind == EventRemove && ev.Path == file }) {
		t.Errorf("Did not receive remove event for %s", file)
	}
}

// TestFSNotifySourceRename tests that a rename inside a root becomes one move event
func TestFSNotifySourceRename(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "before.txt")
	to := filepath.Join(root, "after.txt")
	if err := os.WriteFile(from, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	source := startSource(t, root)

	if err := os.Rename(from, to); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Kind == EventMove && ev.Path == from && ev.Dest == to }) {
		t.Errorf("Did not receive move event %s -> %s", from, to)
	}
}

// TestFSNotifySourceRenameOut tests that moving a file out of the roots reads as a removal
func TestFSNotifySourceRenameOut(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	from := filepath.Join(root, "leaving.txt")
	if err := os.WriteFile(from, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	source := startSource(t, root)

	if err := os.Rename(from, filepath.Join(outside, "leaving.txt")); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Kind == EventRemove && ev.Path == from }) {
		t.Errorf("Did not receive remove event for %s", from)
	}
}

// TestFSNotifySourceNewDirectory tests that directories created later are watched too
func TestFSNotifySourceNewDirectory(t *testing.T) {
	root := t.TempDir()
	source := startSource(t, root)

	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Path == sub && ev.IsDir }) {
		t.Fatalf("Did not receive directory event for %s", sub)
	}

	file := filepath.Join(sub, "nested.txt")
	if err := os.WriteFile(file, []byte("nested"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool { return ev.Kind == EventWrite && ev.Path == file }) {
		t.Errorf("Did not receive write event for %s", file)
	}
}

// TestFSNotifySourceFileRoot tests that a file root only reports its own events
func TestFSNotifySourceFileRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "watched.conf")
	other := filepath.Join(dir, "other.conf")
	if err := os.WriteFile(target, []byte("a"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	source := startSource(t, target)

	if err := os.WriteFile(other, []byte("b"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.WriteFile(target, []byte("changed"), 0644); err != nil {
		t.Fatalf("Failed to modify test file: %v", err)
	}
	if !awaitEvent(t, source, func(ev Event) bool {
		if ev.Path == other {
			t.Errorf("Received event for unwatched sibling %s", other)
		}
		return ev.Path == target
	}) {
		t.Errorf("Did not receive event for %s", target)
	}
}

// TestFSNotifySourceClose tests that Close closes both channels
func TestFSNotifySourceClose(t *testing.T) {
	source, err := NewFSNotifySource(nil)
	if err != nil {
		t.Skipf("Notifications unavailable: %v", err)
	}
	if err := source.Start(context.Background(), []string{t.TempDir()}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := source.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	source.Close() // idempotent

	if _, ok := <-source.Events(); ok {
		t.Errorf("Expected events channel to be closed")
	}
	if _, ok := <-source.Errors(); ok {
		t.Errorf("Expected errors channel to be closed")
	}
}
