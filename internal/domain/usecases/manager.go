package usecases

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// ManagerDeps are the collaborators shared by every controller a SessionManager creates.
type ManagerDeps struct {
	Documents ports.DocumentStore
	Sessions  ports.SessionStore
	Settings  *SettingsUseCase
	Synth     Synthesizer
	Fallback  *FallbackNarrator
	// NewPlayer creates the audio element for one controller.
	NewPlayer     func() ports.AudioPlayer
	NewTicker     func(time.Duration) Ticker
	SaveInterval  time.Duration
	FocusDuration time.Duration
}

type sessionKey struct {
	userID     string
	documentID string
}

type managedSession struct {
	ctrl   *PlaybackController
	player ports.AudioPlayer
}

// SessionManager owns at most one PlaybackController per (user, document).
type SessionManager struct {
	deps ManagerDeps

	mu       sync.Mutex
	sessions map[sessionKey]*managedSession
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager(deps ManagerDeps) *SessionManager {
	return &SessionManager{
		deps:     deps,
		sessions: make(map[sessionKey]*managedSession),
	}
}

// Controller returns the user's controller for a document, creating it with the
// restored cursor and the user's current settings on first use.
func (m *SessionManager) Controller(ctx context.Context, userID, documentID string) (*PlaybackController, error) {
	key := sessionKey{userID, documentID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s.ctrl, nil
	}

	doc, err := m.deps.Documents.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	settings, err := m.deps.Settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	tracker := NewSessionTracker(m.deps.Sessions, userID, documentID, m.deps.SaveInterval)
	start, err := tracker.Restore(ctx)
	if err != nil {
		// The session can still be narrated from the top.
		log.Printf("[WARN] restoring position for %s/%s: %v", userID, documentID, err)
	}

	player := m.deps.NewPlayer()
	ctrl := NewPlaybackController(doc, settings, start, PlaybackDeps{
		Synth:         m.deps.Synth,
		Player:        player,
		Fallback:      m.deps.Fallback,
		Tracker:       tracker,
		NewTicker:     m.deps.NewTicker,
		FocusDuration: m.deps.FocusDuration,
	})
	m.sessions[key] = &managedSession{ctrl: ctrl, player: player}
	log.Printf("[INFO] opened session %s/%s at word %d of %d", userID, documentID, start, doc.WordCount())
	return ctrl, nil
}

// Player returns the audio element of an open session.
func (m *SessionManager) Player(userID, documentID string) (ports.AudioPlayer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{userID, documentID}]
	if !ok {
		return nil, false
	}
	return s.player, true
}

// ApplySettings pushes new settings to every open session of the user.
func (m *SessionManager) ApplySettings(userID string, settings entities.NarrationSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		if key.userID == userID {
			s.ctrl.ApplySettings(settings)
		}
	}
}

// Invalidate closes every session of a document, e.g. after it changed on disk.
// Cursors are persisted before the sessions are dropped.
func (m *SessionManager) Invalidate(documentID string) {
	m.mu.Lock()
	var closing []*PlaybackController
	for key, s := range m.sessions {
		if key.documentID == documentID {
			closing = append(closing, s.ctrl)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, c := range closing {
		c.Close()
	}
	if len(closing) > 0 {
		log.Printf("[INFO] closed %d session(s) of changed document %s", len(closing), documentID)
	}
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes all sessions.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[sessionKey]*managedSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Close()
	}
}
