// Package speech provides local speech engine adapters.
// Clean Architecture: Adapter implementing ports.SpeechEngine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// baseWordsPerMinute is the engine rate at 1.0x.
const baseWordsPerMinute = 175

// DefaultArgs suit espeak-ng and espeak. {wpm} is replaced by the rate.
var DefaultArgs = []string{"-s", "{wpm}"}

// CommandEngine speaks through a local command-line synthesizer, one process
// per word, so every word start is a native boundary.
type CommandEngine struct {
	command string
	args    []string
}

// NewCommandEngine creates an engine running command. Nil args means DefaultArgs.
// The word to speak is always appended as the last argument.
func NewCommandEngine(command string, args []string) *CommandEngine {
	if command == "" {
		command = "espeak-ng"
	}
	if args == nil {
		args = DefaultArgs
	}
	return &CommandEngine{command: command, args: args}
}

// Available reports whether the command can be found.
func (e *CommandEngine) Available() error {
	_, err := exec.LookPath(e.command)
	return err
}

// Speak starts speaking text at rate (1.0 is normal speed).
func (e *CommandEngine) Speak(ctx context.Context, text string, rate float64) (ports.Utterance, error) {
	path, err := exec.LookPath(e.command)
	if err != nil {
		return nil, fmt.Errorf("speech engine %s unavailable: %w", e.command, err)
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, errors.New("nothing to speak")
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{
		events: make(chan ports.SpeechEvent, 16),
		cancel: cancel,
	}
	go u.run(uctx, path, e.expandArgs(rate), words)
	return u, nil
}

func (e *CommandEngine) expandArgs(rate float64) []string {
	if rate <= 0 {
		rate = 1.0
	}
	wpm := strconv.Itoa(int(math.Round(baseWordsPerMinute * rate)))
	args := make([]string, len(e.args))
	for i, a := range e.args {
		args[i] = strings.ReplaceAll(a, "{wpm}", wpm)
	}
	return args
}

// utterance implements ports.Utterance.
type utterance struct {
	events chan ports.SpeechEvent
	cancel context.CancelFunc

	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

// run speaks words in order. A boundary is emitted as each word after the
// first starts, so the count of boundaries equals the index of the word being spoken.
func (u *utterance) run(ctx context.Context, path string, args []string, words []string) {
	defer close(u.events)

	if !u.emit(ctx, ports.SpeechEvent{Kind: ports.SpeechStart}) {
		return
	}
	for i, w := range words {
		if !u.waitResumed(ctx) {
			return
		}
		if i > 0 && !u.emit(ctx, ports.SpeechEvent{Kind: ports.SpeechWordBoundary, Word: w}) {
			return
		}
		cmd := exec.CommandContext(ctx, path, append(args, w)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				return
			}
			u.emit(ctx, ports.SpeechEvent{
				Kind: ports.SpeechError,
				Err:  fmt.Errorf("speaking %q: %w: %s", w, err, strings.TrimSpace(string(out))),
			})
			return
		}
	}
	u.emit(ctx, ports.SpeechEvent{Kind: ports.SpeechEnd})
}

func (u *utterance) emit(ctx context.Context, ev ports.SpeechEvent) bool {
	select {
	case u.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (u *utterance) waitResumed(ctx context.Context) bool {
	u.mu.Lock()
	for u.paused {
		ch := u.resumed
		u.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
		u.mu.Lock()
	}
	u.mu.Unlock()
	return ctx.Err() == nil
}

func (u *utterance) Events() <-chan ports.SpeechEvent { return u.events }

// Pause holds before the next word; the word being spoken finishes.
func (u *utterance) Pause() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.paused {
		u.paused = true
		u.resumed = make(chan struct{})
	}
	return nil
}

func (u *utterance) Resume() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.paused {
		u.paused = false
		close(u.resumed)
	}
	return nil
}

// Cancel stops speaking and kills the running process.
func (u *utterance) Cancel() error {
	u.cancel()
	return nil
}
