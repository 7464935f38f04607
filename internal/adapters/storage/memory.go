package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
)

// InMemoryStore keeps reading state in process memory. Used when no data
// directory is configured and in tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entities.ListeningSession // user/document -> session
	notes    map[string][]entities.Note           // user/document -> notes
	settings map[string]entities.NarrationSettings
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]entities.ListeningSession),
		notes:    make(map[string][]entities.Note),
		settings: make(map[string]entities.NarrationSettings),
	}
}

func key(userID, documentID string) string {
	return userID + "\x00" + documentID
}

// GetSession returns the session for (userID, documentID), or nil if none exists.
func (s *InMemoryStore) GetSession(ctx context.Context, userID, documentID string) (*entities.ListeningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[key(userID, documentID)]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// UpsertSession inserts or updates the session for its (user, document) pair.
func (s *InMemoryStore) UpsertSession(ctx context.Context, ls *entities.ListeningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(ls.UserID, ls.DocumentID)
	if existing, ok := s.sessions[k]; ok {
		ls.ID = existing.ID
	} else if ls.ID == "" {
		ls.ID = uuid.NewString()
	}
	if ls.UpdatedAt.IsZero() {
		ls.UpdatedAt = time.Now()
	}
	s.sessions[k] = *ls
	return nil
}

// AddNote stores a note.
func (s *InMemoryStore) AddNote(ctx context.Context, n *entities.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	k := key(n.UserID, n.DocumentID)
	s.notes[k] = append(s.notes[k], *n)
	return nil
}

// ListNotes returns notes for (userID, documentID) ordered by word index.
func (s *InMemoryStore) ListNotes(ctx context.Context, userID, documentID string) ([]entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := append([]entities.Note(nil), s.notes[key(userID, documentID)]...)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp < notes[j].Timestamp
	})
	return notes, nil
}

// GetSettings returns the user's settings, or nil if none are stored.
func (s *InMemoryStore) GetSettings(ctx context.Context, userID string) (*entities.NarrationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

// UpsertSettings replaces the user's settings.
func (s *InMemoryStore) UpsertSettings(ctx context.Context, settings *entities.NarrationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[settings.UserID] = *settings
	return nil
}
