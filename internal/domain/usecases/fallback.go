package usecases

import (
	"context"
	"errors"
	"log"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// FallbackNarrator speaks text through the local speech engine when the
// provider path has failed.
type FallbackNarrator struct {
	engine ports.SpeechEngine
}

// NewFallbackNarrator creates a FallbackNarrator. A nil engine makes every
// Speak call fail with ErrFallbackFailed.
func NewFallbackNarrator(engine ports.SpeechEngine) *FallbackNarrator {
	return &FallbackNarrator{engine: engine}
}

// Speak starts local narration. Failure to start is terminal for the attempt.
func (f *FallbackNarrator) Speak(ctx context.Context, text string, rate float64) (ports.Utterance, error) {
	if f == nil || f.engine == nil {
		return nil, &FallbackError{Err: errors.New("no local speech engine configured")}
	}
	u, err := f.engine.Speak(ctx, text, rate)
	if err != nil {
		log.Printf("[ERROR] local speech engine unavailable: %v", err)
		return nil, &FallbackError{Err: err}
	}
	return u, nil
}
