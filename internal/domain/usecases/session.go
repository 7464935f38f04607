package usecases

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

const (
	defaultSaveInterval = 2 * time.Second
	writeTimeout        = 5 * time.Second
	writeQueueSize      = 64
)

// SessionTracker persists the word cursor and listening time for one (user, document).
//
// Writes go through a single background writer so they stay ordered (last write wins)
// and never block the caller. A failed write is logged and dropped.
type SessionTracker struct {
	store      ports.SessionStore
	userID     string
	documentID string
	interval   time.Duration
	now        func() time.Time

	mu          sync.Mutex
	session     *entities.ListeningSession // nil until the first write
	lastSave    time.Time
	activeSince time.Time // zero while not playing
	listened    time.Duration

	queue     chan trackerOp
	closeOnce sync.Once
	done      chan struct{}
}

type trackerOp struct {
	snapshot entities.ListeningSession
	flushed  chan struct{} // non-nil for flush markers
}

// NewSessionTracker creates a tracker and starts its writer.
// interval bounds how often periodic Record calls reach the store.
func NewSessionTracker(store ports.SessionStore, userID, documentID string, interval time.Duration) *SessionTracker {
	if interval <= 0 {
		interval = defaultSaveInterval
	}
	t := &SessionTracker{
		store:      store,
		userID:     userID,
		documentID: documentID,
		interval:   interval,
		now:        time.Now,
		queue:      make(chan trackerOp, writeQueueSize),
		done:       make(chan struct{}),
	}
	go t.writer()
	return t
}

// Restore loads the last persisted position, or 0 when no session exists yet.
// No record is created by restoring.
func (t *SessionTracker) Restore(ctx context.Context) (int, error) {
	s, err := t.store.GetSession(ctx, t.userID, t.documentID)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, nil
	}
	t.mu.Lock()
	t.session = s
	t.listened = s.TotalTime
	t.mu.Unlock()
	return s.LastPosition, nil
}

// Session returns a copy of the tracked session, or nil if nothing was persisted yet.
func (t *SessionTracker) Session() *entities.ListeningSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	s := *t.session
	return &s
}

// Start marks the beginning of active listening.
func (t *SessionTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeSince.IsZero() {
		t.activeSince = t.now()
	}
}

// Record persists position if the save interval has elapsed since the last write.
func (t *SessionTracker) Record(position int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastSave.IsZero() && t.now().Sub(t.lastSave) < t.interval {
		return
	}
	t.enqueueLocked(position)
}

// Suspend ends active listening and persists position immediately.
func (t *SessionTracker) Suspend(position int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enqueueLocked(position)
	t.activeSince = time.Time{}
}

func (t *SessionTracker) enqueueLocked(position int) {
	now := t.now()
	if !t.activeSince.IsZero() {
		t.listened += now.Sub(t.activeSince)
		t.activeSince = now
	}
	if t.session == nil {
		t.session = &entities.ListeningSession{
			UserID:     t.userID,
			DocumentID: t.documentID,
		}
	}
	t.session.LastPosition = position
	t.session.TotalTime = t.listened
	t.session.UpdatedAt = now
	t.lastSave = now

	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.queue <- trackerOp{snapshot: *t.session}:
	default:
		log.Printf("[WARN] session writer queue full, dropping position %d for %s", position, t.documentID)
	}
}

// Flush blocks until every queued write has been attempted or ctx ends.
func (t *SessionTracker) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	select {
	case t.queue <- trackerOp{flushed: flushed}:
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer after draining queued writes.
func (t *SessionTracker) Close() {
	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_ = t.Flush(ctx)
		close(t.done)
	})
}

func (t *SessionTracker) writer() {
	for {
		select {
		case <-t.done:
			return
		case op := <-t.queue:
			if op.flushed != nil {
				close(op.flushed)
				continue
			}
			t.write(op.snapshot)
		}
	}
}

func (t *SessionTracker) write(s entities.ListeningSession) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := t.store.UpsertSession(ctx, &s); err != nil {
		log.Printf("[WARN] %v: saving position %d for %s/%s: %v", ErrPersistence, s.LastPosition, s.UserID, s.DocumentID, err)
		return
	}
	// The store assigns the id on first insert.
	t.mu.Lock()
	if t.session != nil && t.session.ID == "" {
		t.session.ID = s.ID
	}
	t.mu.Unlock()
}
