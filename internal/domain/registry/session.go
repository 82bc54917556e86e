package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Session is one live client connection. It stays anonymous until the
// first authenticated frame binds it to a user; only bound sessions
// receive sequenced batches. The outbound channel decouples flushes from
// the transport so one stalled socket never blocks dispatch for others.
type Session struct {
	id        uuid.UUID
	createdAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	sendCh    chan []byte
	closeOnce sync.Once

	mu       sync.Mutex
	userID   int64
	username string

	// pending and the single-shot debounce timer implement update
	// batching: arm on first enqueue, never reset while armed.
	pending    []model.Update
	timer      *time.Timer
	timerArmed bool

	// Bounded recent-signature window for in-flight deduplication.
	sigSet   map[string]struct{}
	sigOrder []string

	lastAckSeq int64
}

func newSession(parent context.Context, bufferSize int) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        uuid.New(),
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		sendCh:    make(chan []byte, bufferSize),
		sigSet:    make(map[string]struct{}),
	}
}

// ID returns the session handle.
func (s *Session) ID() uuid.UUID { return s.id }

// UserID returns the bound user, or 0 while unauthenticated.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Username returns the bound user's login name.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Authenticated reports whether the session is bound to a user.
func (s *Session) Authenticated() bool { return s.UserID() != 0 }

// Outbound is the frame stream the transport writer pumps to the wire.
func (s *Session) Outbound() <-chan []byte { return s.sendCh }

// Done closes when the session is terminated.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// LastAckSeq returns the highest sequence the client confirmed through
// gap recovery.
func (s *Session) LastAckSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAckSeq
}

// SetLastAckSeq records the client's replay position.
func (s *Session) SetLastAckSeq(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastAckSeq {
		s.lastAckSeq = seq
	}
}

// Close terminates the session. Pending sends abort; the transport pump
// observes Done and exits. Safe to call from any goroutine, any number of
// times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timerArmed = false
		s.pending = nil
		s.mu.Unlock()
	})
}

// send enqueues one wire frame, waiting at most timeout for buffer space.
// Waiting (instead of an immediate default) smooths transient jitter; a
// saturated buffer past the timeout means a stuck consumer.
func (s *Session) send(frame []byte, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case s.sendCh <- frame:
		return true
	case <-t.C:
		return false
	}
}

// seenLocked inserts the signature into the dedup window, reporting true
// when it was already present. Caller holds s.mu.
func (s *Session) seenLocked(sig string) bool {
	if _, dup := s.sigSet[sig]; dup {
		return true
	}
	s.sigSet[sig] = struct{}{}
	s.sigOrder = append(s.sigOrder, sig)
	return false
}

// trimSigsLocked shrinks an overgrown window to half its bound, oldest
// first. Caller holds s.mu.
func (s *Session) trimSigsLocked(window int) {
	if len(s.sigOrder) <= window {
		return
	}
	keepFrom := len(s.sigOrder) - window/2
	for _, sig := range s.sigOrder[:keepFrom] {
		delete(s.sigSet, sig)
	}
	s.sigOrder = append(s.sigOrder[:0], s.sigOrder[keepFrom:]...)
}
