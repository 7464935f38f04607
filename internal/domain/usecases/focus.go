package usecases

import (
	"sync"
	"time"
)

const defaultFocusDuration = 25 * time.Minute

// FocusTimer counts down listening time while playback is active and calls
// onBreak when the focus period is used up. The period then starts over.
type FocusTimer struct {
	duration time.Duration
	onBreak  func()
	now      func() time.Time

	mu        sync.Mutex
	remaining time.Duration
	started   time.Time // zero while suspended
	timer     *time.Timer
	gen       int
}

// NewFocusTimer creates a suspended timer.
func NewFocusTimer(duration time.Duration, onBreak func()) *FocusTimer {
	if duration <= 0 {
		duration = defaultFocusDuration
	}
	return &FocusTimer{
		duration:  duration,
		onBreak:   onBreak,
		now:       time.Now,
		remaining: duration,
	}
}

// Resume continues the countdown.
func (f *FocusTimer) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started.IsZero() {
		return
	}
	f.started = f.now()
	f.gen++
	gen := f.gen
	f.timer = time.AfterFunc(f.remaining, func() { f.expire(gen) })
}

// Suspend pauses the countdown.
func (f *FocusTimer) Suspend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started.IsZero() {
		return
	}
	f.timer.Stop()
	f.remaining -= f.now().Sub(f.started)
	if f.remaining < 0 {
		f.remaining = 0
	}
	f.started = time.Time{}
}

// Remaining returns the time left in the current focus period.
func (f *FocusTimer) Remaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started.IsZero() {
		return f.remaining
	}
	left := f.remaining - f.now().Sub(f.started)
	if left < 0 {
		return 0
	}
	return left
}

func (f *FocusTimer) expire(gen int) {
	f.mu.Lock()
	if f.started.IsZero() || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.started = time.Time{}
	f.remaining = f.duration
	f.mu.Unlock()

	if f.onBreak != nil {
		f.onBreak()
	}
}
