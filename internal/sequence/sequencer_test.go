package sequence

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/store"
)

func newTestSequencer(t *testing.T) (*Sequencer, *store.Store) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewSequencer(s, slog.New(slog.NewTextHandler(os.Stderr, nil))), s
}

func TestNextSeqStartsAtOneAndIncreases(t *testing.T) {
	seq, _ := newTestSequencer(t)

	require.Equal(t, int64(0), seq.Current(1))
	require.Equal(t, int64(1), seq.NextSeq(1))
	require.Equal(t, int64(2), seq.NextSeq(1))
	require.Equal(t, int64(2), seq.Current(1))

	// Counters are independent per user.
	require.Equal(t, int64(1), seq.NextSeq(2))
}

func TestNextSeqCollisionFreeUnderConcurrency(t *testing.T) {
	seq, _ := newTestSequencer(t)

	const workers = 8
	const perWorker = 200
	out := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				out <- seq.NextSeq(7)
			}
		}()
	}
	wg.Wait()
	close(out)

	got := make([]int64, 0, workers*perWorker)
	for v := range out {
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		require.Equal(t, int64(i+1), v, "sequence gap or collision")
	}
}

func TestLogBatchAbsorbsDuplicates(t *testing.T) {
	seq, _ := newTestSequencer(t)
	ctx := context.Background()

	dup, err := seq.LogBatch(ctx, 1, 1, `[{"type":"newMessage"}]`)
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = seq.LogBatch(ctx, 1, 1, `[{"type":"newMessage"}]`)
	require.NoError(t, err)
	require.True(t, dup)
	require.Equal(t, uint64(1), seq.Conflicts())
}

func TestBootstrapRestoresHighestSequences(t *testing.T) {
	seq, st := newTestSequencer(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, err := seq.LogBatch(ctx, 1, i, "[]")
		require.NoError(t, err)
	}
	_, err := seq.LogBatch(ctx, 2, 9, "[]")
	require.NoError(t, err)

	restarted := NewSequencer(st, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, restarted.Bootstrap(ctx))
	require.Equal(t, int64(4), restarted.NextSeq(1))
	require.Equal(t, int64(10), restarted.NextSeq(2))
}

func TestFetchLoggedBatchRoundTrip(t *testing.T) {
	seq, st := newTestSequencer(t)
	ctx := context.Background()

	payload := `[{"type":"newMessage","data":{"id":1}}]`
	n := seq.NextSeq(1)
	_, err := seq.LogBatch(ctx, 1, n, payload)
	require.NoError(t, err)

	rows, err := st.ListUpdateLog(ctx, 1, n-1, n)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, n, rows[0].Sequence)
	require.JSONEq(t, payload, rows[0].Updates)
}

func TestPruneKeepsHighestSequence(t *testing.T) {
	seq, st := newTestSequencer(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := seq.LogBatch(ctx, 1, i, "[]")
		require.NoError(t, err)
	}
	// Everything is younger than the cutoff with a negative retention,
	// but the newest row per user must survive regardless.
	n, err := seq.Prune(ctx, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	rows, err := st.ListUpdateLog(ctx, 1, 0, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(5), rows[0].Sequence)
}
