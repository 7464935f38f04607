package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
)

// mockSessionStore implements ports.SessionStore for testing
type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]entities.ListeningSession
	writes   []entities.ListeningSession
	failErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]entities.ListeningSession)}
}

func (m *mockSessionStore) GetSession(ctx context.Context, userID, documentID string) (*entities.ListeningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID+"/"+documentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockSessionStore) UpsertSession(ctx context.Context, s *entities.ListeningSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	key := s.UserID + "/" + s.DocumentID
	if existing, ok := m.sessions[key]; ok {
		s.ID = existing.ID
	} else if s.ID == "" {
		s.ID = "session-" + key
	}
	m.sessions[key] = *s
	m.writes = append(m.writes, *s)
	return nil
}

func (m *mockSessionStore) written() []entities.ListeningSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.ListeningSession(nil), m.writes...)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func flushTracker(t *testing.T, tr *SessionTracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}

func TestSessionTracker_RestoreWithoutSession(t *testing.T) {
	store := newMockSessionStore()
	tr := NewSessionTracker(store, "u1", "doc-1", time.Second)
	defer tr.Close()

	pos, err := tr.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("expected position 0, got %d", pos)
	}
	flushTracker(t, tr)
	if len(store.written()) != 0 {
		t.Error("restoring must not create a record")
	}
	if tr.Session() != nil {
		t.Error("expected no session before the first write")
	}
}

func TestSessionTracker_SuspendThenRestore(t *testing.T) {
	store := newMockSessionStore()
	tr := NewSessionTracker(store, "u1", "doc-1", time.Second)
	tr.Suspend(42)
	tr.Close()

	again := NewSessionTracker(store, "u1", "doc-1", time.Second)
	defer again.Close()
	pos, err := again.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if pos != 42 {
		t.Errorf("expected position 42, got %d", pos)
	}
	if again.Session().ID == "" {
		t.Error("restored session should carry its id")
	}
}

func TestSessionTracker_RecordRespectsInterval(t *testing.T) {
	store := newMockSessionStore()
	clock := newFakeClock()
	tr := NewSessionTracker(store, "u1", "doc-1", 2*time.Second)
	tr.now = clock.Now
	defer tr.Close()

	tr.Record(1)
	clock.Advance(500 * time.Millisecond)
	tr.Record(2)
	clock.Advance(500 * time.Millisecond)
	tr.Record(3)
	clock.Advance(1100 * time.Millisecond)
	tr.Record(4)
	flushTracker(t, tr)

	writes := store.written()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if writes[0].LastPosition != 1 || writes[1].LastPosition != 4 {
		t.Errorf("unexpected positions: %d, %d", writes[0].LastPosition, writes[1].LastPosition)
	}
}

func TestSessionTracker_WritesKeepOrder(t *testing.T) {
	store := newMockSessionStore()
	tr := NewSessionTracker(store, "u1", "doc-1", time.Hour)
	defer tr.Close()

	for i := 1; i <= 20; i++ {
		tr.Suspend(i)
	}
	flushTracker(t, tr)

	writes := store.written()
	for i, w := range writes {
		if w.LastPosition != i+1 {
			t.Fatalf("write %d out of order: %d", i, w.LastPosition)
		}
	}
	s, _ := store.GetSession(context.Background(), "u1", "doc-1")
	if s.LastPosition != 20 {
		t.Errorf("expected last write to win, got %d", s.LastPosition)
	}
}

func TestSessionTracker_AccumulatesListeningTime(t *testing.T) {
	store := newMockSessionStore()
	clock := newFakeClock()
	tr := NewSessionTracker(store, "u1", "doc-1", time.Second)
	tr.now = clock.Now
	defer tr.Close()

	tr.Start()
	clock.Advance(3 * time.Second)
	tr.Suspend(10)

	// Paused time does not count.
	clock.Advance(time.Minute)
	tr.Suspend(10)

	tr.Start()
	clock.Advance(2 * time.Second)
	tr.Suspend(15)
	flushTracker(t, tr)

	s, _ := store.GetSession(context.Background(), "u1", "doc-1")
	if s.TotalTime != 5*time.Second {
		t.Errorf("expected 5s listened, got %v", s.TotalTime)
	}
	if s.LastPosition != 15 {
		t.Errorf("expected position 15, got %d", s.LastPosition)
	}
}

func TestSessionTracker_FailedWriteDoesNotBlock(t *testing.T) {
	store := newMockSessionStore()
	store.failErr = errors.New("disk full")
	tr := NewSessionTracker(store, "u1", "doc-1", time.Second)
	defer tr.Close()

	tr.Suspend(5)
	flushTracker(t, tr)

	if len(store.written()) != 0 {
		t.Error("expected no successful writes")
	}
	if s := tr.Session(); s == nil || s.LastPosition != 5 {
		t.Error("in-memory session should still track the position")
	}
}
