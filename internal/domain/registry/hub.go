package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Allocator hands out per-user sequences and makes batches durable before
// they reach the wire.
type Allocator interface {
	NextSeq(userID int64) int64
	LogBatch(ctx context.Context, userID, seq int64, updatesJSON string) (duplicate bool, err error)
}

// PresenceStore persists the online flag when a user's last session drops.
type PresenceStore interface {
	SetUserOnline(ctx context.Context, id int64, online bool, lastSeen time.Time) error
}

// Hub is the registry of live sessions. It owns the fan-out primitives
// (Broadcast, ToUser, DirectSend), the per-session batching flush and the
// status-subscription index. Each index has its own lock, held briefly and
// never across I/O.
type Hub struct {
	cfg    settings
	logger *slog.Logger
	alloc  Allocator
	users  PresenceStore

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	userMu sync.RWMutex
	byUser map[int64]map[uuid.UUID]*Session

	// watchers: watched user id -> watching sessions.
	// watched: session id -> watched user ids, for disconnect cleanup.
	subMu    sync.RWMutex
	watchers map[int64]map[uuid.UUID]*Session
	watched  map[uuid.UUID]map[int64]struct{}

	startedAt time.Time
	enqueued  atomic.Uint64
	deduped   atomic.Uint64
	flushed   atomic.Uint64
	dropped   atomic.Uint64
	conflicts atomic.Uint64
}

func NewHub(alloc Allocator, users PresenceStore, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		cfg:       defaultSettings(),
		logger:    logger,
		alloc:     alloc,
		users:     users,
		sessions:  make(map[uuid.UUID]*Session),
		byUser:    make(map[int64]map[uuid.UUID]*Session),
		watchers:  make(map[int64]map[uuid.UUID]*Session),
		watched:   make(map[uuid.UUID]map[int64]struct{}),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&h.cfg)
	}
	return h
}

// Register creates a session for a fresh transport connection.
func (h *Hub) Register(parent context.Context) *Session {
	s := newSession(parent, h.cfg.sendBuffer)
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	return s
}

// Bind attaches the session to an authenticated user. Rebinding to the
// same user is a no-op; sessions never switch users.
func (h *Hub) Bind(s *Session, userID int64, username string) {
	s.mu.Lock()
	if s.userID == userID {
		s.username = username
		s.mu.Unlock()
		return
	}
	s.userID = userID
	s.username = username
	s.mu.Unlock()

	h.userMu.Lock()
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[uuid.UUID]*Session)
		h.byUser[userID] = set
	}
	set[s.id] = s
	h.userMu.Unlock()
}

// Unregister removes the session from every index after one final flush.
// When the user's last session drops, the user is marked offline and
// status watchers are told.
func (h *Hub) Unregister(ctx context.Context, s *Session) {
	h.flush(s)
	s.Close()

	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	h.subMu.Lock()
	for userID := range h.watched[s.id] {
		if set, ok := h.watchers[userID]; ok {
			delete(set, s.id)
			if len(set) == 0 {
				delete(h.watchers, userID)
			}
		}
	}
	delete(h.watched, s.id)
	h.subMu.Unlock()

	userID := s.UserID()
	if userID == 0 {
		return
	}

	h.userMu.Lock()
	lastSession := false
	if set, ok := h.byUser[userID]; ok {
		delete(set, s.id)
		if len(set) == 0 {
			delete(h.byUser, userID)
			lastSession = true
		}
	}
	h.userMu.Unlock()

	if !lastSession {
		return
	}
	now := time.Now().UTC()
	if err := h.users.SetUserOnline(ctx, userID, false, now); err != nil {
		h.logger.Warn("mark user offline failed", "user_id", userID, "error", err)
	}
	h.NotifyWatchers(userID, model.StatusChanged(userID, false, &now))
}

// Enqueue appends an update to the session's pending batch, arming the
// debounce timer on the first one. Duplicates within the signature window
// are dropped.
func (h *Hub) Enqueue(s *Session, u model.Update) {
	h.enqueued.Add(1)
	s.mu.Lock()
	if s.seenLocked(u.Signature()) {
		s.mu.Unlock()
		h.deduped.Add(1)
		return
	}
	s.pending = append(s.pending, u)
	if !s.timerArmed {
		s.timerArmed = true
		s.timer = time.AfterFunc(h.cfg.flushDelay, func() { h.flush(s) })
	}
	s.mu.Unlock()
}

// flush swaps out the pending batch and, for an authenticated session,
// allocates a sequence, durably logs the batch and frames it. Pending
// updates of unauthenticated sessions are discarded.
func (h *Hub) flush(s *Session) {
	s.mu.Lock()
	s.timerArmed = false
	batch := s.pending
	s.pending = nil
	userID := s.userID
	s.trimSigsLocked(h.cfg.signatureWindow)
	s.mu.Unlock()

	if len(batch) == 0 || userID == 0 {
		return
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		h.logger.Error("batch marshal failed", "session_id", s.id, "error", err)
		return
	}
	seq := h.alloc.NextSeq(userID)
	duplicate, err := h.alloc.LogBatch(context.Background(), userID, seq, string(raw))
	if err != nil {
		h.logger.Error("batch log failed", "user_id", userID, "seq", seq, "error", err)
		return
	}
	if duplicate {
		h.conflicts.Add(1)
	}

	if !s.send(UpdatesFrame(seq, raw), h.cfg.sendTimeout) {
		h.dropped.Add(1)
		h.logger.Warn("session outbound saturated, closing",
			"session_id", s.id, "user_id", userID, "seq", seq)
		s.Close()
		return
	}
	h.flushed.Add(1)
}

// Broadcast enqueues the update on every authenticated session.
func (h *Hub) Broadcast(u model.Update) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.Authenticated() {
			h.Enqueue(s, u)
		}
	}
}

// ToUser enqueues the update on every session of one user.
func (h *Hub) ToUser(userID int64, u model.Update) {
	for _, s := range h.sessionsOf(userID) {
		h.Enqueue(s, u)
	}
}

// DirectSend bypasses batching, used for command replies, subscribe
// results and gap replay. A saturated session is closed.
func (h *Hub) DirectSend(s *Session, frame []byte) bool {
	if s.send(frame, h.cfg.sendTimeout) {
		return true
	}
	h.dropped.Add(1)
	s.Close()
	return false
}

// DirectSendToUser sends an unbatched frame to every session of the user.
func (h *Hub) DirectSendToUser(userID int64, frame []byte) int {
	delivered := 0
	for _, s := range h.sessionsOf(userID) {
		if h.DirectSend(s, frame) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) sessionsOf(userID int64) []*Session {
	h.userMu.RLock()
	defer h.userMu.RUnlock()
	set := h.byUser[userID]
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// IsOnline reports whether the user has at least one live session.
func (h *Hub) IsOnline(userID int64) bool {
	h.userMu.RLock()
	defer h.userMu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// SubscribeStatus registers the session as a watcher of the user.
func (h *Hub) SubscribeStatus(s *Session, userID int64) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	set, ok := h.watchers[userID]
	if !ok {
		set = make(map[uuid.UUID]*Session)
		h.watchers[userID] = set
	}
	set[s.id] = s
	mine, ok := h.watched[s.id]
	if !ok {
		mine = make(map[int64]struct{})
		h.watched[s.id] = mine
	}
	mine[userID] = struct{}{}
}

// UnsubscribeStatus removes the watch.
func (h *Hub) UnsubscribeStatus(s *Session, userID int64) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if set, ok := h.watchers[userID]; ok {
		delete(set, s.id)
		if len(set) == 0 {
			delete(h.watchers, userID)
		}
	}
	if mine, ok := h.watched[s.id]; ok {
		delete(mine, userID)
	}
}

// NotifyWatchers enqueues a presence update on every session watching the
// user.
func (h *Hub) NotifyWatchers(userID int64, u model.Update) {
	h.subMu.RLock()
	targets := make([]*Session, 0, len(h.watchers[userID]))
	for _, s := range h.watchers[userID] {
		targets = append(targets, s)
	}
	h.subMu.RUnlock()

	for _, s := range targets {
		h.Enqueue(s, u)
	}
}

// Stats snapshots the hub counters.
func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	total := len(h.sessions)
	authed := 0
	for _, s := range h.sessions {
		if s.Authenticated() {
			authed++
		}
	}
	h.mu.RUnlock()

	h.userMu.RLock()
	users := len(h.byUser)
	h.userMu.RUnlock()

	h.subMu.RLock()
	watching := 0
	for _, set := range h.watchers {
		watching += len(set)
	}
	h.subMu.RUnlock()

	return model.HubStats{
		Sessions:          total,
		Authenticated:     authed,
		Users:             users,
		StatusWatchers:    watching,
		UpdatesEnqueued:   h.enqueued.Load(),
		UpdatesDeduped:    h.deduped.Load(),
		BatchesFlushed:    h.flushed.Load(),
		FramesDropped:     h.dropped.Load(),
		SequenceConflicts: h.conflicts.Load(),
		Uptime:            time.Since(h.startedAt),
	}
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
