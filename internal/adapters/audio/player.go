package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
)

// ErrNotLoaded is returned by transport calls made before Load.
var ErrNotLoaded = errors.New("no audio loaded")

// ClockPlayer is the audio element of a session. It keeps the loaded asset
// for the client to fetch and runs a clock over the asset's duration so that
// the controller sees the same play, pause and end behavior as a media element.
type ClockPlayer struct {
	now func() time.Time

	mu       sync.Mutex
	asset    *entities.NarrationResult
	duration time.Duration
	played   time.Duration // position at the last pause
	started  time.Time     // zero while not playing
	timer    *time.Timer
	run      int
	ended    chan struct{}
	endOnce  *sync.Once
}

// NewClockPlayer creates an empty player.
func NewClockPlayer() *ClockPlayer {
	return &ClockPlayer{now: time.Now}
}

// Load replaces the current asset and returns its duration. Only MP3 is supported.
func (p *ClockPlayer) Load(ctx context.Context, asset *entities.NarrationResult) (time.Duration, error) {
	if asset == nil {
		return 0, ErrNotLoaded
	}
	if asset.Format != "" && asset.Format != "mp3" {
		return 0, fmt.Errorf("unsupported audio format %q", asset.Format)
	}
	d, err := Duration(asset.Audio)
	if err != nil {
		return 0, fmt.Errorf("measuring audio: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.asset = asset
	p.duration = d
	p.played = 0
	p.ended = make(chan struct{})
	p.endOnce = &sync.Once{}
	return d, nil
}

// Play starts the loaded asset from its current position.
func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asset == nil {
		return ErrNotLoaded
	}
	if !p.started.IsZero() {
		return nil
	}
	remaining := p.duration - p.played
	if remaining <= 0 {
		p.finishLocked()
		return nil
	}
	p.started = p.now()
	p.run++
	run, ended, once := p.run, p.ended, p.endOnce
	p.timer = time.AfterFunc(remaining, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// A pause, stop or new Load replaced this run.
		if p.run != run || p.started.IsZero() {
			return
		}
		p.played = p.duration
		p.started = time.Time{}
		once.Do(func() { close(ended) })
	})
	return nil
}

// Pause holds the current position.
func (p *ClockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asset == nil {
		return ErrNotLoaded
	}
	p.holdLocked()
	return nil
}

// Resume continues from the held position.
func (p *ClockPlayer) Resume() error {
	return p.Play()
}

// Stop halts playback and rewinds. The Ended channel does not fire.
func (p *ClockPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// IsPlaying reports whether the clock is running.
func (p *ClockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.started.IsZero()
}

// Position returns how far into the asset playback is.
func (p *ClockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.played
	if !p.started.IsZero() {
		pos += p.now().Sub(p.started)
	}
	if pos > p.duration {
		pos = p.duration
	}
	return pos
}

// Duration returns the length of the loaded asset.
func (p *ClockPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Ended fires once when the loaded asset has played to its end.
func (p *ClockPlayer) Ended() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// Asset returns the loaded asset, if any.
func (p *ClockPlayer) Asset() (*entities.NarrationResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asset, p.asset != nil
}

func (p *ClockPlayer) holdLocked() {
	if p.started.IsZero() {
		return
	}
	p.run++
	p.timer.Stop()
	p.played += p.now().Sub(p.started)
	if p.played > p.duration {
		p.played = p.duration
	}
	p.started = time.Time{}
}

func (p *ClockPlayer) stopLocked() {
	p.run++
	if p.timer != nil {
		p.timer.Stop()
	}
	p.started = time.Time{}
	p.played = 0
}

func (p *ClockPlayer) finishLocked() {
	if p.endOnce != nil {
		ended := p.ended
		p.endOnce.Do(func() { close(ended) })
	}
}
