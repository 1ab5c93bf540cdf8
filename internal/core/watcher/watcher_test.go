package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	_, err := NewWatcher(100*time.Millisecond, []string{"["}, func([]string) {})
	if err == nil {
		t.Fatal("expected error for malformed exclude pattern")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(100*time.Millisecond, []string{"*.bak"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	catalog := filepath.Join(tmpDir, "catalog.toml")
	os.WriteFile(catalog, []byte("[[primitive]]"), 0644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == catalog {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected to find %s in changed files %v", catalog, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	// Non-TOML and excluded files stay silent.
	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "catalog.toml.bak"), []byte("x"), 0644)

	select {
	case paths := <-changedFiles:
		t.Errorf("unexpected event for %v", paths)
	case <-time.After(300 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_ExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	// No .toml extension; only the explicit name registration admits it.
	target := filepath.Join(tmpDir, "catalog.conf")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(50*time.Millisecond, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{target}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(target, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		if len(paths) != 1 || paths[0] != target {
			t.Errorf("changed files = %v, want [%s]", paths, target)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for explicit file event")
	}
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(200*time.Millisecond, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	a := filepath.Join(tmpDir, "a.toml")
	b := filepath.Join(tmpDir, "b.toml")
	os.WriteFile(a, []byte("1"), 0644)
	os.WriteFile(b, []byte("2"), 0644)

	select {
	case paths := <-changedFiles:
		if len(paths) != 2 {
			t.Errorf("expected one coalesced batch of 2 paths, got %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}

	select {
	case paths := <-changedFiles:
		t.Errorf("second batch after debounce window: %v", paths)
	case <-time.After(300 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.toml")
	newPath := filepath.Join(tmpDir, "new.toml")
	if err := os.WriteFile(oldPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}
