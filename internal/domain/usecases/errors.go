package usecases

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent: the document has no words; narration is refused before any provider call.
	ErrEmptyContent = errors.New("document has no readable words")
	// ErrSynthesisFailed: the provider path failed; callers switch to the fallback path.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrFallbackFailed: the local speech engine is unavailable or errored. Terminal for the attempt.
	ErrFallbackFailed = errors.New("fallback narration failed")
	// ErrPersistence: a session, note or settings write failed.
	ErrPersistence = errors.New("persistence failed")
	// ErrInvalidTransition: the operation is not valid in the current playback state.
	ErrInvalidTransition = errors.New("invalid playback transition")
	// ErrInterrupted: playback was stopped before the requested audio could start.
	ErrInterrupted = errors.New("playback interrupted")
	// ErrEmptyNote: a note must contain text.
	ErrEmptyNote = errors.New("note is empty")
	// ErrInvalidSettings: a settings update carried an unusable value.
	ErrInvalidSettings = errors.New("invalid settings")
)

// SynthesisError carries the stage and provider status of a failed synthesis.
type SynthesisError struct {
	Stage   string // "request" or "timeout"
	Chunk   int    // zero-based chunk that failed
	Chunks  int
	Status  int // provider HTTP status, 0 when the request never completed
	Message string
	Err     error
}

func (e *SynthesisError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("synthesis %s failed on chunk %d/%d: status %d: %s", e.Stage, e.Chunk+1, e.Chunks, e.Status, e.Message)
	}
	return fmt.Sprintf("synthesis %s failed on chunk %d/%d: %s", e.Stage, e.Chunk+1, e.Chunks, e.Message)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesisFailed }

// FallbackError wraps a local speech engine failure.
type FallbackError struct {
	Err error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback narration failed: %v", e.Err)
}

func (e *FallbackError) Unwrap() error { return e.Err }

func (e *FallbackError) Is(target error) bool { return target == ErrFallbackFailed }
