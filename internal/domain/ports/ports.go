// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, adapters implement them.
package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// SpeechRequest is one narration provider call.
type SpeechRequest struct {
	Text  string
	Voice string // user-facing voice name, resolved by the provider
	Speed float64
}

// ProviderLimits describes what a narration provider accepts.
type ProviderLimits struct {
	MaxChars int
	MinSpeed float64
	MaxSpeed float64
}

// NarrationProvider turns text into encoded audio bytes.
type NarrationProvider interface {
	// Synthesize issues exactly one provider request.
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)

	// Limits returns the provider's input length and speed bounds.
	Limits() ProviderLimits

	// Name identifies the provider in logs and errors.
	Name() string
}

// ProviderError is returned by providers that rejected a request.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
}

// SpeechEventKind is the type of event a local speech engine emits.
type SpeechEventKind int

const (
	SpeechStart SpeechEventKind = iota
	SpeechWordBoundary
	SpeechEnd
	SpeechError
)

// SpeechEvent is emitted by an Utterance while it is spoken.
type SpeechEvent struct {
	Kind SpeechEventKind
	Word string
	Err  error
}

// SpeechEngine is a locally available narration engine with native word-boundary events.
type SpeechEngine interface {
	// Speak starts speaking text. An error means the engine is unavailable.
	Speak(ctx context.Context, text string, rate float64) (Utterance, error)
}

// Utterance is an in-progress local narration.
type Utterance interface {
	// Events is closed after the end or error event.
	Events() <-chan SpeechEvent
	Pause() error
	Resume() error
	Cancel() error
}

// AudioPlayer is the primary audio element that plays a synthesized asset.
type AudioPlayer interface {
	// Load prepares the asset and returns its total duration.
	Load(ctx context.Context, asset *entities.NarrationResult) (time.Duration, error)
	Play() error
	Pause() error
	Resume() error
	Stop() error
	IsPlaying() bool
	// Ended fires once when the loaded asset has played to its end.
	Ended() <-chan struct{}
}

// DocumentStore supplies plain-text documents by id.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*entities.Document, error)
	List(ctx context.Context) ([]entities.Document, error)
}

// SessionStore persists listening sessions keyed by (user, document).
type SessionStore interface {
	// GetSession returns nil, nil when no session exists yet.
	GetSession(ctx context.Context, userID, documentID string) (*entities.ListeningSession, error)
	UpsertSession(ctx context.Context, s *entities.ListeningSession) error
}

// NoteStore persists notes.
type NoteStore interface {
	AddNote(ctx context.Context, n *entities.Note) error
	// ListNotes returns notes ordered by Timestamp ascending.
	ListNotes(ctx context.Context, userID, documentID string) ([]entities.Note, error)
}

// SettingsStore persists narration settings.
type SettingsStore interface {
	// GetSettings returns nil, nil when the user has no settings yet.
	GetSettings(ctx context.Context, userID string) (*entities.NarrationSettings, error)
	UpsertSettings(ctx context.Context, s *entities.NarrationSettings) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
