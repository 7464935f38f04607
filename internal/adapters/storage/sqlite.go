// Package storage provides persistence adapters for sessions, notes and settings.
// Clean Architecture: Adapter implementing ports.SessionStore, ports.NoteStore and ports.SettingsStore.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
)

// SQLiteStore persists reading state in a single SQLite file.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteStore opens (or creates) the database under dataPath.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "readaloud.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listening_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		last_position INTEGER NOT NULL DEFAULT 0,
		total_time_ms INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		UNIQUE(user_id, document_id)
	);
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		note_text TEXT NOT NULL,
		word_index INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_user_document ON notes(user_id, document_id);
	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		speed REAL NOT NULL DEFAULT 1.0,
		voice TEXT NOT NULL DEFAULT 'default',
		focus_mode INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetSession returns the session for (userID, documentID), or nil if none exists.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, documentID string) (*entities.ListeningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		session entities.ListeningSession
		totalMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, document_id, last_position, total_time_ms, updated_at
		FROM listening_sessions
		WHERE user_id = ? AND document_id = ?
	`, userID, documentID).Scan(&session.ID, &session.UserID, &session.DocumentID, &session.LastPosition, &totalMS, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	session.TotalTime = time.Duration(totalMS) * time.Millisecond
	return &session, nil
}

// UpsertSession inserts or updates the session for its (user, document) pair.
// The stored id is written back to ls.
func (s *SQLiteStore) UpsertSession(ctx context.Context, ls *entities.ListeningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ls.ID
	if id == "" {
		id = uuid.NewString()
	}
	updated := ls.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO listening_sessions (id, user_id, document_id, last_position, total_time_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, document_id) DO UPDATE SET
			last_position = excluded.last_position,
			total_time_ms = excluded.total_time_ms,
			updated_at = excluded.updated_at
		RETURNING id
	`, id, ls.UserID, ls.DocumentID, ls.LastPosition, ls.TotalTime.Milliseconds(), updated).Scan(&ls.ID)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// AddNote stores a note.
func (s *SQLiteStore) AddNote(ctx context.Context, n *entities.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, document_id, note_text, word_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.DocumentID, n.Text, n.Timestamp, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

// ListNotes returns notes for (userID, documentID) ordered by word index.
func (s *SQLiteStore) ListNotes(ctx context.Context, userID, documentID string) ([]entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, document_id, note_text, word_index, created_at
		FROM notes
		WHERE user_id = ? AND document_id = ?
		ORDER BY word_index ASC, created_at ASC
	`, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []entities.Note
	for rows.Next() {
		var n entities.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.DocumentID, &n.Text, &n.Timestamp, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// GetSettings returns the user's settings, or nil if none are stored.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*entities.NarrationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := entities.NarrationSettings{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT speed, voice, focus_mode FROM settings WHERE user_id = ?
	`, userID).Scan(&settings.Speed, &settings.Voice, &settings.FocusMode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	return &settings, nil
}

// UpsertSettings replaces the user's settings.
func (s *SQLiteStore) UpsertSettings(ctx context.Context, settings *entities.NarrationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, speed, voice, focus_mode)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			speed = excluded.speed,
			voice = excluded.voice,
			focus_mode = excluded.focus_mode
	`, settings.UserID, settings.Speed, settings.Voice, settings.FocusMode)
	if err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}
	return nil
}

// SessionCount returns the number of stored sessions.
func (s *SQLiteStore) SessionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listening_sessions").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
