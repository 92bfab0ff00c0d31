package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher("index")
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher("index")
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.Mkdir(filepath.Join(dir, "index"), 0o755)
	}()

	select {
	case event := <-events:
		if event.Operation != ports.FileCreated {
			t.Errorf("expected create event, got %v", event.Operation)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_FiltersByName(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher("index")
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)

	select {
	case ev := <-events:
		t.Errorf("unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func TestWatchIndex_InvalidatesOnRemoval(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "PlanAndBuilding_index")
	if err := os.Mkdir(indexPath, 0o755); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewFSNotifyWatcher(filepath.Base(indexPath))
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := &countingInvalidator{}
	if err := WatchIndex(ctx, watcher, indexPath, inv); err != nil {
		t.Fatalf("watch index: %v", err)
	}

	if err := os.RemoveAll(indexPath); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for inv.n.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("index removal did not invalidate")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher()
	if err := watcher.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
