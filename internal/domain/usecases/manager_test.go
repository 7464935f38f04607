package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// mockDocumentStore implements ports.DocumentStore for testing
type mockDocumentStore struct {
	docs map[string]*entities.Document
}

func (m *mockDocumentStore) Get(ctx context.Context, id string) (*entities.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentStore) List(ctx context.Context) ([]entities.Document, error) {
	var out []entities.Document
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, nil
}

func newTestManager(t *testing.T, sessions *mockSessionStore) (*SessionManager, *tickerFactory) {
	t.Helper()
	doc := wordsDoc(50)
	tickers := &tickerFactory{}
	m := NewSessionManager(ManagerDeps{
		Documents:    &mockDocumentStore{docs: map[string]*entities.Document{doc.ID: doc}},
		Sessions:     sessions,
		Settings:     NewSettingsUseCase(newMockSettingsStore()),
		Synth:        NewSynthesisUseCase(newMockProvider(10000), time.Second),
		Fallback:     NewFallbackNarrator(&mockEngine{}),
		NewPlayer:    func() ports.AudioPlayer { return &mockPlayer{duration: 25 * time.Second} },
		NewTicker:    tickers.New,
		SaveInterval: time.Hour,
	})
	t.Cleanup(m.Close)
	return m, tickers
}

func TestSessionManager_OneControllerPerUserAndDocument(t *testing.T) {
	m, _ := newTestManager(t, newMockSessionStore())
	ctx := context.Background()

	a, err := m.Controller(ctx, "u1", "doc-1")
	if err != nil {
		t.Fatalf("controller failed: %v", err)
	}
	b, _ := m.Controller(ctx, "u1", "doc-1")
	if a != b {
		t.Error("expected the same controller for the same user and document")
	}
	c, _ := m.Controller(ctx, "u2", "doc-1")
	if a == c {
		t.Error("users must not share controllers")
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", m.Len())
	}
	if _, ok := m.Player("u1", "doc-1"); !ok {
		t.Error("expected a player for an open session")
	}
}

func TestSessionManager_UnknownDocument(t *testing.T) {
	m, _ := newTestManager(t, newMockSessionStore())

	_, err := m.Controller(context.Background(), "u1", "missing")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionManager_RestoresCursor(t *testing.T) {
	store := newMockSessionStore()
	_ = store.UpsertSession(context.Background(), &entities.ListeningSession{UserID: "u1", DocumentID: "doc-1", LastPosition: 17})
	m, _ := newTestManager(t, store)

	ctrl, err := m.Controller(context.Background(), "u1", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if c := ctrl.Status().Cursor; c != 17 {
		t.Errorf("expected restored cursor 17, got %d", c)
	}
}

func TestSessionManager_InvalidatePersistsAndReopens(t *testing.T) {
	store := newMockSessionStore()
	m, tickers := newTestManager(t, store)
	ctx := context.Background()

	ctrl, _ := m.Controller(ctx, "u1", "doc-1")
	if err := ctrl.Play(ctx); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	tickers.tick(t, 3)
	waitFor(t, "cursor 3", func() bool { return ctrl.Status().Cursor == 3 })

	m.Invalidate("doc-1")
	if !ctrl.IsClosed() || m.Len() != 0 {
		t.Fatal("expected the session to be closed")
	}

	reopened, _ := m.Controller(ctx, "u1", "doc-1")
	if reopened == ctrl {
		t.Fatal("expected a new controller")
	}
	if c := reopened.Status().Cursor; c != 3 {
		t.Errorf("expected cursor 3 after reopening, got %d", c)
	}
}

func TestSessionManager_ApplySettings(t *testing.T) {
	m, _ := newTestManager(t, newMockSessionStore())
	ctx := context.Background()

	ctrl, _ := m.Controller(ctx, "u1", "doc-1")
	s := entities.DefaultSettings("u1")
	s.FocusMode = true
	m.ApplySettings("u1", s)

	if ctrl.Status().FocusRemaining == 0 {
		t.Error("focus mode should be active")
	}
}
