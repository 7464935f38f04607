package documents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// mockWatcher implements ports.FileWatcher for testing
type mockWatcher struct {
	events chan ports.FileEvent
}

func (m *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return m.events, nil
}

func (m *mockWatcher) Stop() error { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDirStore_ScanLoadsTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second document")
	writeFile(t, dir, "a.md", "# first\r\ndocument")
	writeFile(t, dir, "image.png", "not text")

	store := NewDirStore(dir, nil)
	if err := store.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	docs, _ := store.List(context.Background())
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Name != "a.md" || docs[1].Name != "b.txt" {
		t.Errorf("documents should be ordered by name: %s, %s", docs[0].Name, docs[1].Name)
	}
	if docs[0].Content != "# first\ndocument" {
		t.Errorf("line endings should be normalized: %q", docs[0].Content)
	}

	doc, err := store.Get(context.Background(), docs[1].ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.WordCount() != 2 {
		t.Errorf("expected 2 words, got %d", doc.WordCount())
	}
}

func TestDirStore_StableIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "hello")

	store := NewDirStore(dir, nil)
	a, _ := store.Load(context.Background(), path)
	b, _ := store.Load(context.Background(), path)
	if a.ID != b.ID || len(a.ID) != 16 {
		t.Errorf("expected stable 16-char id, got %q and %q", a.ID, b.ID)
	}
}

func TestDirStore_GetUnknown(t *testing.T) {
	store := NewDirStore(t.TempDir(), nil)
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirStore_RejectsBinaryContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0644)

	store := NewDirStore(dir, nil)
	if _, err := store.Load(context.Background(), path); err == nil {
		t.Error("expected an error for invalid UTF-8")
	}
}

func TestDirStore_SyncAppliesEvents(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir, nil)
	if err := store.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	watcher := &mockWatcher{events: make(chan ports.FileEvent)}
	changed := make(chan string, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- store.Sync(ctx, watcher, func(id string) { changed <- id })
	}()

	path := writeFile(t, dir, "new.txt", "fresh words here")
	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileCreated}

	var id string
	select {
	case id = <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	doc, err := store.Get(context.Background(), id)
	if err != nil || doc.Content != "fresh words here" {
		t.Fatalf("document not loaded: %v", err)
	}

	// Same content again is not a change.
	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileModified}
	os.WriteFile(path, []byte("edited"), 0644)
	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileModified}
	select {
	case got := <-changed:
		if got != id {
			t.Errorf("unexpected id %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("modification not reported")
	}
	if len(changed) != 0 {
		t.Error("unchanged content should not be reported")
	}

	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileDeleted}
	<-changed
	if _, err := store.Get(context.Background(), id); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("deleted document should be gone, got %v", err)
	}

	close(watcher.events)
	if err := <-done; err != nil {
		t.Errorf("sync returned %v", err)
	}
}
