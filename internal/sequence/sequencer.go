package sequence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// BatchLog is the slice of the store the sequencer persists through.
type BatchLog interface {
	AppendUpdateLog(ctx context.Context, userID, sequence int64, updatesJSON string) error
	MaxLoggedSequences(ctx context.Context) (map[int64]int64, error)
	PruneUpdateLog(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sequencer owns the per-user monotonic batch counters. NextSeq is strictly
// increasing across all of a user's sessions; LogBatch makes the batch
// durable before it is framed to any client.
type Sequencer struct {
	log    BatchLog
	logger *slog.Logger

	mu       sync.Mutex
	counters map[int64]*counter

	conflicts atomic.Uint64
}

// counter carries its own lock so allocation for one user never contends
// with another user's flush.
type counter struct {
	mu    sync.Mutex
	value int64
}

func NewSequencer(log BatchLog, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		log:      log,
		logger:   logger,
		counters: make(map[int64]*counter),
	}
}

func (s *Sequencer) counterFor(userID int64) *counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		c = &counter{}
		s.counters[userID] = c
	}
	return c
}

// Bootstrap seeds the counters from the durable log so sequences stay
// monotonic across restarts.
func (s *Sequencer) Bootstrap(ctx context.Context) error {
	highest, err := s.log.MaxLoggedSequences(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, seq := range highest {
		s.counters[userID] = &counter{value: seq}
	}
	if len(highest) > 0 {
		s.logger.Info("sequence counters restored", "users", len(highest))
	}
	return nil
}

// NextSeq allocates the next sequence for the user, starting at 1.
func (s *Sequencer) NextSeq(userID int64) int64 {
	c := s.counterFor(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value
}

// Current returns the latest allocated sequence without advancing it.
func (s *Sequencer) Current(userID int64) int64 {
	c := s.counterFor(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// LogBatch durably stores one flushed batch. A (user, sequence) conflict
// means another session already persisted this batch; the call is a no-op
// then and reports duplicate=true.
func (s *Sequencer) LogBatch(ctx context.Context, userID, seq int64, updatesJSON string) (duplicate bool, err error) {
	err = s.log.AppendUpdateLog(ctx, userID, seq, updatesJSON)
	if errors.Is(err, model.ErrDuplicateSequence) {
		s.conflicts.Add(1)
		return true, nil
	}
	return false, err
}

// Conflicts reports how many duplicate batch writes were absorbed.
func (s *Sequencer) Conflicts() uint64 { return s.conflicts.Load() }

// Prune drops log rows older than the retention horizon. Each user's
// highest sequence survives so Bootstrap stays correct.
func (s *Sequencer) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.log.PruneUpdateLog(ctx, time.Now().Add(-retention))
}
