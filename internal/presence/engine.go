package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Broadcaster is the hub surface the engine emits through.
type Broadcaster interface {
	Broadcast(u model.Update)
	ToUser(userID int64, u model.Update)
}

type entry struct {
	username string
	at       time.Time
}

type pairKey struct {
	senderID    int64
	recipientID int64
}

// Engine tracks the typing state machines: a public one per user and a DM
// one per (sender, recipient) pair. Both are edge-triggered: a broadcast
// fires only on idle<->typing transitions, refreshes just slide the TTL.
// Emits happen outside the lock.
type Engine struct {
	hub    Broadcaster
	logger *slog.Logger
	ttl    time.Duration
	tick   time.Duration
	now    func() time.Time

	mu     sync.Mutex
	public map[int64]entry
	dm     map[pairKey]entry
}

func NewEngine(hub Broadcaster, logger *slog.Logger) *Engine {
	return &Engine{
		hub:    hub,
		logger: logger,
		ttl:    3 * time.Second,
		tick:   time.Second,
		now:    time.Now,
		public: make(map[int64]entry),
		dm:     make(map[pairKey]entry),
	}
}

// Typing handles the public typing command. The first call in a burst
// broadcasts; refreshes only touch the timestamp.
func (e *Engine) Typing(userID int64, username string) {
	e.mu.Lock()
	_, active := e.public[userID]
	e.public[userID] = entry{username: username, at: e.now()}
	e.mu.Unlock()

	if !active {
		e.hub.Broadcast(model.TypingStarted(userID, username))
	}
}

// StopTyping forces the public transition to idle.
func (e *Engine) StopTyping(userID int64, username string) {
	e.mu.Lock()
	_, active := e.public[userID]
	delete(e.public, userID)
	e.mu.Unlock()

	if active {
		e.hub.Broadcast(model.TypingStopped(userID, username))
	}
}

// DMTyping handles per-pair typing; the event goes to the recipient only.
func (e *Engine) DMTyping(senderID int64, senderName string, recipientID int64) {
	key := pairKey{senderID: senderID, recipientID: recipientID}
	e.mu.Lock()
	_, active := e.dm[key]
	e.dm[key] = entry{username: senderName, at: e.now()}
	e.mu.Unlock()

	if !active {
		e.hub.ToUser(recipientID, model.DMTypingStarted(senderID, senderName))
	}
}

// StopDMTyping forces the pair's transition to idle.
func (e *Engine) StopDMTyping(senderID int64, senderName string, recipientID int64) {
	key := pairKey{senderID: senderID, recipientID: recipientID}
	e.mu.Lock()
	_, active := e.dm[key]
	delete(e.dm, key)
	e.mu.Unlock()

	if active {
		e.hub.ToUser(recipientID, model.DMTypingStopped(senderID, senderName))
	}
}

// sweep expires entries whose TTL lapsed, emitting the stop transition for
// each. Emits run after the lock is released.
func (e *Engine) sweep(now time.Time) {
	type expiredPublic struct {
		userID   int64
		username string
	}
	type expiredDM struct {
		key      pairKey
		username string
	}
	var pubs []expiredPublic
	var dms []expiredDM

	e.mu.Lock()
	for userID, en := range e.public {
		if now.Sub(en.at) > e.ttl {
			delete(e.public, userID)
			pubs = append(pubs, expiredPublic{userID: userID, username: en.username})
		}
	}
	for key, en := range e.dm {
		if now.Sub(en.at) > e.ttl {
			delete(e.dm, key)
			dms = append(dms, expiredDM{key: key, username: en.username})
		}
	}
	e.mu.Unlock()

	for _, p := range pubs {
		e.hub.Broadcast(model.TypingStopped(p.userID, p.username))
	}
	for _, d := range dms {
		e.hub.ToUser(d.key.recipientID, model.DMTypingStopped(d.key.senderID, d.username))
	}
}

// Run drives the TTL sweeper until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.sweep(now)
		}
	}
}
