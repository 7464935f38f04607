package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// NotesUseCase records notes anchored to the word cursor.
type NotesUseCase struct {
	store ports.NoteStore
	now   func() time.Time
}

// NewNotesUseCase creates a new NotesUseCase.
func NewNotesUseCase(store ports.NoteStore) *NotesUseCase {
	return &NotesUseCase{store: store, now: time.Now}
}

// Add stores a note taken at word index timestamp of a document with
// wordCount words. The index is clamped into the document.
func (uc *NotesUseCase) Add(ctx context.Context, userID, documentID, text string, timestamp, wordCount int) (*entities.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNote
	}
	if timestamp >= wordCount {
		timestamp = wordCount - 1
	}
	if timestamp < 0 {
		timestamp = 0
	}

	note := &entities.Note{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Text:       text,
		Timestamp:  timestamp,
		CreatedAt:  uc.now(),
	}
	if err := uc.store.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("%w: adding note: %v", ErrPersistence, err)
	}
	return note, nil
}

// List returns a user's notes for a document ordered by word index.
func (uc *NotesUseCase) List(ctx context.Context, userID, documentID string) ([]entities.Note, error) {
	notes, err := uc.store.ListNotes(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp < notes[j].Timestamp
	})
	return notes, nil
}
