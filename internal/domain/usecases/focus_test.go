package usecases

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFocusTimer_CountsOnlyWhileRunning(t *testing.T) {
	clock := newFakeClock()
	f := NewFocusTimer(time.Hour, nil)
	f.now = clock.Now

	f.Resume()
	clock.Advance(10 * time.Minute)
	f.Suspend()
	clock.Advance(30 * time.Minute)

	if left := f.Remaining(); left != 50*time.Minute {
		t.Errorf("expected 50m left, got %v", left)
	}

	f.Resume()
	clock.Advance(5 * time.Minute)
	if left := f.Remaining(); left != 45*time.Minute {
		t.Errorf("expected 45m left, got %v", left)
	}
	f.Suspend()
}

func TestFocusTimer_BreakAfterDuration(t *testing.T) {
	var breaks atomic.Int32
	f := NewFocusTimer(20*time.Millisecond, func() { breaks.Add(1) })

	f.Resume()
	waitFor(t, "break", func() bool { return breaks.Load() == 1 })

	if left := f.Remaining(); left != 20*time.Millisecond {
		t.Errorf("period should start over after a break, got %v", left)
	}
}

func TestFocusTimer_SuspendPreventsBreak(t *testing.T) {
	var breaks atomic.Int32
	f := NewFocusTimer(30*time.Millisecond, func() { breaks.Add(1) })

	f.Resume()
	f.Suspend()
	time.Sleep(60 * time.Millisecond)

	if breaks.Load() != 0 {
		t.Error("suspended timer must not fire")
	}
}

func TestFocusTimer_DefaultDuration(t *testing.T) {
	f := NewFocusTimer(0, nil)
	if f.Remaining() != 25*time.Minute {
		t.Errorf("expected 25m default, got %v", f.Remaining())
	}
}
