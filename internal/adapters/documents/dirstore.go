// Package documents provides document store adapters.
// Clean Architecture: Adapter implementing ports.DocumentStore.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// DefaultExtensions are the plain-text formats served for narration.
var DefaultExtensions = []string{".txt", ".md", ".markdown"}

// DirStore serves the plain-text files of one directory as documents.
type DirStore struct {
	dir        string
	extensions []string

	mu   sync.RWMutex
	docs map[string]*entities.Document // docID -> document
}

// NewDirStore creates a store over dir. Call Scan to load it.
func NewDirStore(dir string, extensions []string) *DirStore {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &DirStore{
		dir:        dir,
		extensions: extensions,
		docs:       make(map[string]*entities.Document),
	}
}

// Extensions returns the file extensions this store loads.
func (s *DirStore) Extensions() []string {
	return s.extensions
}

// Scan loads every supported file in the directory, creating it if needed.
func (s *DirStore) Scan(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating documents directory: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading documents directory: %w", err)
	}

	docs := make(map[string]*entities.Document)
	for _, e := range entries {
		if e.IsDir() || !s.supported(e.Name()) {
			continue
		}
		doc, err := s.Load(ctx, filepath.Join(s.dir, e.Name()))
		if err != nil {
			log.Printf("[WARN] skipping %s: %v", e.Name(), err)
			continue
		}
		docs[doc.ID] = doc
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()

	log.Printf("[INFO] loaded %d document(s) from %s", len(docs), s.dir)
	return nil
}

// Load reads a text document from the given path.
func (s *DirStore) Load(ctx context.Context, path string) (*entities.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s is not UTF-8 text", filepath.Base(path))
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	return &entities.Document{
		ID:        generateDocID(path),
		Name:      filepath.Base(path),
		Path:      path,
		Content:   strings.ReplaceAll(string(content), "\r\n", "\n"),
		CreatedAt: info.ModTime(),
		UpdatedAt: time.Now(),
	}, nil
}

// Get returns a document by id.
func (s *DirStore) Get(ctx context.Context, id string) (*entities.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ports.ErrNotFound)
	}
	return doc, nil
}

// List returns all documents ordered by name.
func (s *DirStore) List(ctx context.Context) ([]entities.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]entities.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Name < docs[j].Name
	})
	return docs, nil
}

// Sync applies watcher events to the store until ctx is done or the watcher
// closes. onChange, if set, receives the id of every added, changed or removed document.
func (s *DirStore) Sync(ctx context.Context, watcher ports.FileWatcher, onChange func(docID string)) error {
	events, err := watcher.Watch(ctx, s.dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	log.Printf("[INFO] watching %s for document changes", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			id, changed := s.apply(ctx, ev)
			if changed && onChange != nil {
				onChange(id)
			}
		}
	}
}

func (s *DirStore) apply(ctx context.Context, ev ports.FileEvent) (string, bool) {
	id := generateDocID(ev.Path)

	if ev.Operation == ports.FileDeleted {
		s.mu.Lock()
		_, existed := s.docs[id]
		delete(s.docs, id)
		s.mu.Unlock()
		if existed {
			log.Printf("[INFO] document removed: %s", filepath.Base(ev.Path))
		}
		return id, existed
	}

	doc, err := s.Load(ctx, ev.Path)
	if err != nil {
		log.Printf("[WARN] reloading %s: %v", filepath.Base(ev.Path), err)
		return id, false
	}

	s.mu.Lock()
	prev, existed := s.docs[id]
	s.docs[id] = doc
	s.mu.Unlock()

	if existed && prev.Content == doc.Content {
		return id, false
	}
	log.Printf("[INFO] document updated: %s (%d words)", doc.Name, doc.WordCount())
	return id, true
}

func (s *DirStore) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(hash[:8])
}
