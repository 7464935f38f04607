package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// baseWordsPerSecond is the expected local engine pace at 1.0x (150 words per minute).
const baseWordsPerSecond = 2.5

// Synthesizer produces the primary narration asset.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) (*entities.NarrationResult, error)
	EffectiveSpeed(speed float64) float64
}

// Ticker is the subset of time.Ticker the controller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// PlaybackDeps are the collaborators of a PlaybackController.
type PlaybackDeps struct {
	Synth    Synthesizer
	Player   ports.AudioPlayer
	Fallback *FallbackNarrator
	Tracker  *SessionTracker

	// NewTicker defaults to time.NewTicker.
	NewTicker func(time.Duration) Ticker
	// FocusDuration is the focus period length when focus mode is on.
	FocusDuration time.Duration
}

// PlaybackStatus is a snapshot of a controller.
type PlaybackStatus struct {
	DocumentID       string        `json:"documentId"`
	State            string        `json:"state"`
	Path             string        `json:"path"`
	Loading          bool          `json:"loading"`
	Cursor           int           `json:"cursor"`
	WordCount        int           `json:"wordCount"`
	Progress         float64       `json:"progress"`
	WordsPerSecond   float64       `json:"wordsPerSecond"`
	Speed            float64       `json:"speed"`
	VisibleLineStart int           `json:"visibleLineStart"`
	VisibleLineEnd   int           `json:"visibleLineEnd"`
	ListeningTime    time.Duration `json:"listeningTime"`
	FocusRemaining   time.Duration `json:"focusRemaining,omitempty"`
	Notice           string        `json:"notice,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// PlaybackController owns the play/pause/stop state machine of one reading
// session and the single active narration handle that drives its word cursor.
//
// Cursor advances from either path (primary tick or fallback word boundary)
// are delivered as events to one consumer per attempt, so every advance goes
// through apply.
type PlaybackController struct {
	doc       *entities.Document
	words     []string
	synth     Synthesizer
	player    ports.AudioPlayer
	fallback  *FallbackNarrator
	tracker   *SessionTracker
	newTicker func(time.Duration) Ticker
	focusDur  time.Duration

	mu       sync.Mutex
	settings entities.NarrationSettings
	state    entities.PlaybackState
	path     entities.NarrationPath
	cursor   int
	loading  bool
	seq      uint64 // bumped whenever an attempt is started or abandoned
	abort    context.CancelFunc
	handle   narrationHandle
	current  *attempt
	wps      float64
	speed    float64
	notice   string
	lastErr  error
	window   *ReadingWindow
	focus    *FocusTimer
	subs     map[chan entities.CursorUpdate]struct{}
	closed   bool
}

// NewPlaybackController creates an idle controller with the cursor at start.
func NewPlaybackController(doc *entities.Document, settings entities.NarrationSettings, start int, deps PlaybackDeps) *PlaybackController {
	words := doc.Words()
	if start < 0 || start >= len(words) {
		start = 0
	}
	c := &PlaybackController{
		doc:       doc,
		words:     words,
		synth:     deps.Synth,
		player:    deps.Player,
		fallback:  deps.Fallback,
		tracker:   deps.Tracker,
		newTicker: deps.NewTicker,
		focusDur:  deps.FocusDuration,
		cursor:    start,
		window:    NewReadingWindow(len(words)),
		subs:      make(map[chan entities.CursorUpdate]struct{}),
	}
	if c.newTicker == nil {
		c.newTicker = newStdTicker
	}
	c.window.Follow(start)
	c.applySettingsLocked(settings)
	return c
}

// Play starts or resumes narration.
//
// From Paused it resumes the existing handle without synthesizing again. From
// Idle or Ended it synthesizes the words from the cursor onward and blocks
// until audio starts; the controller stays responsive to Stop meanwhile. If the
// provider fails, narration continues on the fallback path.
func (c *PlaybackController) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	switch c.state {
	case entities.StatePaused:
		defer c.mu.Unlock()
		return c.resumeLocked()
	case entities.StatePlaying:
		c.mu.Unlock()
		return fmt.Errorf("%w: already playing", ErrInvalidTransition)
	}

	if len(c.words) == 0 {
		c.state = entities.StateEnded
		c.publishLocked()
		c.mu.Unlock()
		return ErrEmptyContent
	}

	c.seq++
	id := c.seq
	synthCtx, cancel := context.WithCancel(ctx)
	c.abort = cancel
	c.loading = true
	c.state = entities.StatePlaying
	c.path = entities.PathNone
	c.notice, c.lastErr = "", nil
	from := c.cursor
	text := strings.Join(c.words[from:], " ")
	settings := c.settings
	c.publishLocked()
	c.mu.Unlock()

	result, err := c.synth.Synthesize(synthCtx, text, settings.Voice, settings.Speed)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != id || !c.loading {
		return ErrInterrupted
	}
	c.loading = false
	c.abort = nil

	if ctx.Err() != nil {
		c.state = entities.StateIdle
		c.publishLocked()
		return ctx.Err()
	}
	if err == nil {
		err = c.startPrimaryLocked(ctx, id, result, from)
		if err == nil {
			return nil
		}
	}
	log.Printf("[WARN] primary narration failed for %s, falling back to local speech: %v", c.doc.ID, err)
	c.notice = "Narration service unavailable, using the local voice: " + err.Error()
	return c.startFallbackLocked(id, text, from, settings)
}

func (c *PlaybackController) startPrimaryLocked(ctx context.Context, id uint64, result *entities.NarrationResult, from int) error {
	duration, err := c.player.Load(ctx, result)
	if err != nil {
		return fmt.Errorf("loading audio: %w", err)
	}

	remaining := len(c.words) - from
	wps := float64(remaining) / duration.Seconds()
	if math.IsNaN(wps) || math.IsInf(wps, 0) || wps <= 0 {
		log.Printf("[WARN] audio for %s has no usable duration (%v), ending playback", c.doc.ID, duration)
		c.state = entities.StateEnded
		c.path = entities.PathNone
		c.publishLocked()
		return nil
	}

	p := newAttempt(id)
	h := &primaryAudio{
		player:    c.player,
		interval:  time.Duration(float64(time.Second) / wps),
		newTicker: c.newTicker,
		p:         p,
	}
	ended := c.player.Ended()
	if err := c.player.Play(); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}

	c.handle, c.current = h, p
	c.path = entities.PathPrimary
	c.wps = wps
	c.speed = result.Speed
	go c.consume(p)
	go h.watchEnded(ended)
	if c.cursor < len(c.words)-1 {
		h.startTicking()
	}
	c.beginListeningLocked()
	log.Printf("[INFO] playing %s from word %d at %.2f words/s", c.doc.ID, from, wps)
	return nil
}

func (c *PlaybackController) startFallbackLocked(id uint64, text string, from int, settings entities.NarrationSettings) error {
	rate := c.synth.EffectiveSpeed(settings.Speed)
	ctx, cancel := context.WithCancel(context.Background())
	u, err := c.fallback.Speak(ctx, text, rate)
	if err != nil {
		cancel()
		c.state = entities.StateIdle
		c.path = entities.PathNone
		c.lastErr = err
		c.publishLocked()
		return err
	}

	p := newAttempt(id)
	h := &fallbackSpeech{utterance: u, stop: cancel}
	c.handle, c.current = h, p
	c.path = entities.PathFallback
	c.wps = baseWordsPerSecond * rate
	c.speed = rate
	go c.consume(p)
	go h.forward(p)
	c.beginListeningLocked()
	log.Printf("[INFO] speaking %s locally from word %d at rate %.2f", c.doc.ID, from, rate)
	return nil
}

func (c *PlaybackController) resumeLocked() error {
	if err := c.handle.resume(); err != nil {
		return fmt.Errorf("resuming: %w", err)
	}
	c.state = entities.StatePlaying
	c.beginListeningLocked()
	return nil
}

func (c *PlaybackController) beginListeningLocked() {
	c.state = entities.StatePlaying
	c.tracker.Start()
	if c.focus != nil {
		c.focus.Resume()
	}
	c.publishLocked()
}

// Pause halts narration and persists the cursor immediately.
func (c *PlaybackController) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != entities.StatePlaying || c.loading || c.handle == nil {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}
	if err := c.handle.pause(); err != nil {
		return fmt.Errorf("pausing: %w", err)
	}
	c.state = entities.StatePaused
	c.endListeningLocked()
	return nil
}

// Stop halts narration, persists the cursor and returns to Idle. A Stop while
// audio is still being synthesized prevents that audio from starting.
func (c *PlaybackController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != entities.StatePlaying && c.state != entities.StatePaused {
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, c.state)
	}
	c.haltLocked()
	c.endListeningLocked()
	return nil
}

// Reset stops any narration and moves the cursor back to the first word.
func (c *PlaybackController) Reset() {
	c.Seek(0)
}

// Seek stops any narration and moves the cursor to position.
func (c *PlaybackController) Seek(position int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	if position < 0 || len(c.words) == 0 {
		position = 0
	}
	if position >= len(c.words) && len(c.words) > 0 {
		position = len(c.words) - 1
	}
	c.cursor = position
	c.window.Follow(position)
	c.endListeningLocked()
}

// Page scrolls the visible window one view forward or back without moving
// the cursor. While playing, the window follows the cursor again once the
// cursor's line is out of view.
func (c *PlaybackController) Page(forward bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if forward {
		c.window.Next()
	} else {
		c.window.Previous()
	}
	c.publishLocked()
}

// haltLocked abandons the active attempt, if any, and leaves the controller Idle.
func (c *PlaybackController) haltLocked() {
	c.seq++
	if c.loading {
		c.abort()
		c.loading = false
		c.abort = nil
	}
	c.releaseLocked()
	c.state = entities.StateIdle
}

func (c *PlaybackController) releaseLocked() {
	if c.handle != nil {
		c.handle.cancel()
		c.handle = nil
	}
	if c.current != nil {
		c.current.finish()
		c.current = nil
	}
	c.path = entities.PathNone
}

func (c *PlaybackController) endListeningLocked() {
	if c.focus != nil {
		c.focus.Suspend()
	}
	c.tracker.Suspend(c.cursor)
	c.publishLocked()
}

func (c *PlaybackController) consume(p *attempt) {
	for {
		select {
		case ev := <-p.events:
			c.apply(p, ev)
		case <-p.done:
			return
		}
	}
}

// apply is the single handler for cursor advances and end-of-narration events.
func (c *PlaybackController) apply(p *attempt, ev narrationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != p {
		return
	}
	last := len(c.words) - 1

	switch ev.kind {
	case eventAdvance:
		// The local engine finishes the word it started before a pause, so its
		// boundary can arrive after the controller is already Paused.
		_, speaking := c.handle.(*fallbackSpeech)
		lateBoundary := c.state == entities.StatePaused && speaking
		if (c.state != entities.StatePlaying && !lateBoundary) || c.cursor >= last {
			return
		}
		c.cursor++
		c.window.Follow(c.cursor)
		if lateBoundary {
			c.tracker.Suspend(c.cursor)
		} else {
			c.tracker.Record(c.cursor)
		}
		if c.cursor >= last {
			if h, ok := c.handle.(*primaryAudio); ok {
				h.stopTicking()
			}
		}
		c.publishLocked()

	case eventEnded:
		c.releaseLocked()
		c.state = entities.StateEnded
		if c.cursor >= last {
			c.cursor = 0
			c.window.Follow(0)
		}
		c.endListeningLocked()
		log.Printf("[INFO] narration of %s ended at word %d", c.doc.ID, c.cursor)

	case eventFailed:
		c.releaseLocked()
		c.state = entities.StateIdle
		c.lastErr = &FallbackError{Err: ev.err}
		log.Printf("[ERROR] local narration of %s failed: %v", c.doc.ID, ev.err)
		c.endListeningLocked()
	}
}

// ApplySettings replaces the narration settings used by the next Play.
func (c *PlaybackController) ApplySettings(s entities.NarrationSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applySettingsLocked(s)
}

func (c *PlaybackController) applySettingsLocked(s entities.NarrationSettings) {
	c.settings = s
	switch {
	case s.FocusMode && c.focus == nil:
		c.focus = NewFocusTimer(c.focusDur, c.focusBreak)
		if c.state == entities.StatePlaying && !c.loading {
			c.focus.Resume()
		}
	case !s.FocusMode && c.focus != nil:
		c.focus.Suspend()
		c.focus = nil
	}
}

func (c *PlaybackController) focusBreak() {
	if err := c.Pause(); err == nil {
		log.Printf("[INFO] focus period over for %s, pausing for a break", c.doc.ID)
	}
}

// Status returns a snapshot of the controller.
func (c *PlaybackController) Status() PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := PlaybackStatus{
		DocumentID:       c.doc.ID,
		State:            c.state.String(),
		Path:             c.path.String(),
		Loading:          c.loading,
		Cursor:           c.cursor,
		WordCount:        len(c.words),
		Progress:         Progress(c.cursor, len(c.words)),
		WordsPerSecond:   c.wps,
		Speed:            c.speed,
		Notice:           c.notice,
	}
	st.VisibleLineStart, st.VisibleLineEnd = c.window.Range()
	if ls := c.tracker.Session(); ls != nil {
		st.ListeningTime = ls.TotalTime
	}
	if c.focus != nil {
		st.FocusRemaining = c.focus.Remaining()
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

// Subscribe returns a channel of cursor updates and a function that ends the
// subscription. Updates are dropped for subscribers that fall behind.
func (c *PlaybackController) Subscribe() (<-chan entities.CursorUpdate, func()) {
	ch := make(chan entities.CursorUpdate, 64)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.updateLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

func (c *PlaybackController) updateLocked() entities.CursorUpdate {
	return entities.CursorUpdate{
		DocumentID:       c.doc.ID,
		Cursor:           c.cursor,
		WordCount:        len(c.words),
		Progress:         Progress(c.cursor, len(c.words)),
		State:            c.state.String(),
		Path:             c.path.String(),
		VisibleLineStart: c.window.Start(),
	}
}

func (c *PlaybackController) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	u := c.updateLocked()
	for ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close stops narration, flushes pending position writes and ends all subscriptions.
func (c *PlaybackController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	active := c.state == entities.StatePlaying || c.state == entities.StatePaused
	c.haltLocked()
	if active {
		c.endListeningLocked()
	}
	if c.focus != nil {
		c.focus.Suspend()
	}
	c.closed = true
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.mu.Unlock()

	c.tracker.Close()
}

// IsClosed reports whether Close has been called.
func (c *PlaybackController) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type eventKind int

const (
	eventAdvance eventKind = iota
	eventEnded
	eventFailed
)

type narrationEvent struct {
	kind eventKind
	err  error
}

// attempt is one started narration; its events are ignored once it is finished.
type attempt struct {
	id     uint64
	events chan narrationEvent
	done   chan struct{}
	once   sync.Once
}

func newAttempt(id uint64) *attempt {
	return &attempt{
		id:     id,
		events: make(chan narrationEvent, 16),
		done:   make(chan struct{}),
	}
}

func (a *attempt) send(ev narrationEvent) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}

func (a *attempt) finish() { a.once.Do(func() { close(a.done) }) }

// narrationHandle is the active narration: primaryAudio or fallbackSpeech.
type narrationHandle interface {
	pause() error
	resume() error
	cancel()
}

// primaryAudio drives the cursor from a fixed-interval tick while the player is playing.
type primaryAudio struct {
	player    ports.AudioPlayer
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	p         *attempt

	mu     sync.Mutex
	ticker Ticker
	halt   chan struct{}
}

func (h *primaryAudio) startTicking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ticker != nil {
		return
	}
	t := h.newTicker(h.interval)
	halt := make(chan struct{})
	h.ticker, h.halt = t, halt

	go func() {
		for {
			select {
			case <-halt:
				return
			case <-h.p.done:
				return
			case <-t.C():
				if !h.player.IsPlaying() {
					continue
				}
				if !h.p.send(narrationEvent{kind: eventAdvance}) {
					return
				}
			}
		}
	}()
}

func (h *primaryAudio) stopTicking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ticker == nil {
		return
	}
	h.ticker.Stop()
	close(h.halt)
	h.ticker, h.halt = nil, nil
}

func (h *primaryAudio) watchEnded(ended <-chan struct{}) {
	select {
	case <-ended:
		h.p.send(narrationEvent{kind: eventEnded})
	case <-h.p.done:
	}
}

func (h *primaryAudio) pause() error {
	h.stopTicking()
	return h.player.Pause()
}

func (h *primaryAudio) resume() error {
	if err := h.player.Resume(); err != nil {
		return err
	}
	h.startTicking()
	return nil
}

func (h *primaryAudio) cancel() {
	h.stopTicking()
	if err := h.player.Stop(); err != nil {
		log.Printf("[WARN] stopping audio: %v", err)
	}
}

// fallbackSpeech drives the cursor from the local engine's word-boundary events.
type fallbackSpeech struct {
	utterance ports.Utterance
	stop      context.CancelFunc
}

func (h *fallbackSpeech) forward(p *attempt) {
	for ev := range h.utterance.Events() {
		switch ev.Kind {
		case ports.SpeechWordBoundary:
			if !p.send(narrationEvent{kind: eventAdvance}) {
				return
			}
		case ports.SpeechEnd:
			p.send(narrationEvent{kind: eventEnded})
			return
		case ports.SpeechError:
			err := ev.Err
			if err == nil {
				err = errors.New("speech engine error")
			}
			p.send(narrationEvent{kind: eventFailed, err: err})
			return
		}
	}
	p.send(narrationEvent{kind: eventEnded})
}

func (h *fallbackSpeech) pause() error  { return h.utterance.Pause() }
func (h *fallbackSpeech) resume() error { return h.utterance.Resume() }

func (h *fallbackSpeech) cancel() {
	if err := h.utterance.Cancel(); err != nil {
		log.Printf("[WARN] cancelling local speech: %v", err)
	}
	h.stop()
}
