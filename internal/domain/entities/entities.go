// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"strings"
	"time"
)

// Document is a readable text supplied by the document store.
// Content is already-extracted plain text.
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Words returns the whitespace-tokenized word sequence of the document.
// A WordIndex always points into this sequence.
func (d *Document) Words() []string {
	return strings.Fields(d.Content)
}

// WordCount returns the number of words in the document.
func (d *Document) WordCount() int {
	return len(d.Words())
}

// PlaybackState is the state of one playback session.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// NarrationPath tells which narration path drives the cursor.
type NarrationPath int

const (
	PathNone NarrationPath = iota
	PathPrimary
	PathFallback
)

func (p NarrationPath) String() string {
	switch p {
	case PathPrimary:
		return "primary"
	case PathFallback:
		return "fallback"
	default:
		return "none"
	}
}

// AudioChunk is one provider request: its text and, once synthesized, its audio.
type AudioChunk struct {
	Index int
	Text  string
	Audio []byte
}

// NarrationResult is the combined, playable audio for a synthesis request.
// Chunk boundaries are not addressable once combined.
type NarrationResult struct {
	Audio  []byte
	Format string // e.g. "mp3"
	Voice  string
	Speed  float64 // clamped speed actually sent to the provider
}

// ListeningSession is the persisted playback position for a (user, document) pair.
type ListeningSession struct {
	ID           string
	UserID       string
	DocumentID   string
	LastPosition int
	TotalTime    time.Duration // measured time spent playing
	UpdatedAt    time.Time
}

// Note is an annotation bound to the word cursor at creation time.
type Note struct {
	ID         string
	UserID     string
	DocumentID string
	Text       string
	Timestamp  int // word index the note was taken at
	CreatedAt  time.Time
}

// NarrationSettings are per-user narration preferences.
type NarrationSettings struct {
	UserID    string
	Speed     float64
	Voice     string
	FocusMode bool
}

// DefaultSettings returns the settings a new user starts with.
func DefaultSettings(userID string) NarrationSettings {
	return NarrationSettings{
		UserID: userID,
		Speed:  1.0,
		Voice:  "default",
	}
}

// CursorUpdate is published every time the word cursor or playback state changes.
type CursorUpdate struct {
	DocumentID       string  `json:"documentId"`
	Cursor           int     `json:"cursor"`
	WordCount        int     `json:"wordCount"`
	Progress         float64 `json:"progress"`
	State            string  `json:"state"`
	Path             string  `json:"path"`
	VisibleLineStart int     `json:"visibleLineStart"`
}
