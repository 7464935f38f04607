package entities

import (
	"testing"
	"time"
)

func TestDocument_Words(t *testing.T) {
	doc := Document{
		ID:        "doc-123",
		Name:      "test.txt",
		Content:   "  Hello   world.\nSecond\tline  ",
		CreatedAt: time.Now(),
	}

	words := doc.Words()
	if len(words) != 4 {
		t.Fatalf("expected 4 words, got %d: %q", len(words), words)
	}
	if words[0] != "Hello" || words[3] != "line" {
		t.Errorf("unexpected words: %q", words)
	}
	if doc.WordCount() != 4 {
		t.Errorf("expected word count 4, got %d", doc.WordCount())
	}
}

func TestDocument_EmptyContent(t *testing.T) {
	doc := Document{ID: "empty", Content: " \n\t "}
	if doc.WordCount() != 0 {
		t.Errorf("whitespace-only content should have 0 words, got %d", doc.WordCount())
	}
}

func TestPlaybackState_String(t *testing.T) {
	cases := map[PlaybackState]string{
		StateIdle:    "idle",
		StatePlaying: "playing",
		StatePaused:  "paused",
		StateEnded:   "ended",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: expected %q, got %q", state, want, got)
		}
	}
}

func TestNarrationPath_String(t *testing.T) {
	if PathPrimary.String() != "primary" || PathFallback.String() != "fallback" || PathNone.String() != "none" {
		t.Error("unexpected path names")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("u1")
	if s.UserID != "u1" {
		t.Errorf("expected user u1, got %s", s.UserID)
	}
	if s.Speed != 1.0 {
		t.Errorf("expected speed 1.0, got %f", s.Speed)
	}
	if s.Voice != "default" || s.FocusMode {
		t.Error("unexpected default voice or focus mode")
	}
}
