package spam

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
)

type fakeEnforcer struct {
	mu      sync.Mutex
	calls   int
	match   string
	reason  string
	msgIDs  []int64
	samples []string
}

func (f *fakeEnforcer) AutoSuspend(_ context.Context, _ *model.User, matchType, reason string, messageIDs []int64, samples []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.match = matchType
	f.reason = reason
	f.msgIDs = messageIDs
	f.samples = samples
	return nil
}

func testConfig() Config {
	return Config{
		BurstWindow:         30 * time.Second,
		BurstCount:          20,
		SpamWindow:          45 * time.Second,
		SimilarityThreshold: 0.88,
		SpamLimit:           5,
		ShortLength:         8,
		ShortRepeat:         4,
	}
}

func newTestMonitor(t *testing.T) (*Monitor, *fakeEnforcer, *time.Time) {
	t.Helper()
	enforcer := &fakeEnforcer{}
	sink := audit.NewSink(audit.Config{Dir: t.TempDir()})
	t.Cleanup(func() { _ = sink.Close() })
	m := NewMonitor(testConfig(), enforcer, sink, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, enforcer, &now
}

func user(id int64) *model.User {
	return &model.User{ID: id, Username: fmt.Sprintf("user%d", id)}
}

// Distinct filler lines that stay clear of both repeat rules.
var fillerLines = []string{
	"morning standup moved to ten",
	"the coffee machine is fixed",
	"who broke the staging deploy",
	"lunch orders close at noon",
	"new laptop finally arrived",
	"meeting room two is free now",
	"anyone have a spare hdmi cable",
	"the printer jammed again",
	"release notes draft is ready",
	"friday demo starts at three",
	"parking garage closes early today",
	"found a wallet near the elevator",
	"wifi password changed this week",
	"plants in the lobby need water",
	"retro board link is in the wiki",
	"heating is off on the fourth floor",
	"ticket queue is empty for once",
	"badge reader at the side door works",
	"cake in the kitchen for birthdays",
	"bike rack moved to the back lot",
}

func TestBurstRuleSuspendsAtLimit(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	for i := 1; i < 20; i++ {
		*now = now.Add(100 * time.Millisecond)
		suspended, err := m.Observe(ctx, u, fillerLines[i-1], int64(i))
		require.NoError(t, err)
		require.False(t, suspended, "message %d should not trip the limit", i)
	}

	*now = now.Add(100 * time.Millisecond)
	suspended, err := m.Observe(ctx, u, fillerLines[19], 20)
	require.NoError(t, err)
	require.True(t, suspended)
	require.Equal(t, 1, enforcer.calls)
	require.Equal(t, audit.MatchBurst, enforcer.match)
	require.Equal(t, ReasonBurst, enforcer.reason)
	require.Len(t, enforcer.msgIDs, 20)
}

func TestBurstWindowExpiryResetsRate(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	for i := 1; i <= 19; i++ {
		suspended, err := m.Observe(ctx, u, fillerLines[i-1], int64(i))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	// The whole window ages out; one more message is harmless.
	*now = now.Add(31 * time.Second)
	suspended, err := m.Observe(ctx, u, fillerLines[19], 20)
	require.NoError(t, err)
	require.False(t, suspended)
	require.Zero(t, enforcer.calls)
}

func TestShortRepeatRule(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	for i := 1; i <= 4; i++ {
		*now = now.Add(time.Second)
		suspended, err := m.Observe(ctx, u, "buy now", int64(i))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	// Fifth exact copy: four prior matches of a short text.
	*now = now.Add(time.Second)
	suspended, err := m.Observe(ctx, u, "BUY NOW!", 5)
	require.NoError(t, err)
	require.True(t, suspended)
	require.Equal(t, audit.MatchShortRepeat, enforcer.match)
	require.Equal(t, ReasonRepeat, enforcer.reason)
	require.Len(t, enforcer.msgIDs, 5)
}

func TestSimilarRepeatRule(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	variants := []string{
		"check out my awesome crypto site",
		"check out my awesome crypto site!",
		"check out my awesome crypto site!!",
		"check  out my awesome crypto site",
	}
	for i, text := range variants {
		*now = now.Add(time.Second)
		suspended, err := m.Observe(ctx, u, text, int64(i+1))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	*now = now.Add(time.Second)
	suspended, err := m.Observe(ctx, u, "check out my awesome crypto site...", 5)
	require.NoError(t, err)
	require.True(t, suspended)
	require.Equal(t, audit.MatchSimilarRepeat, enforcer.match)
	require.Len(t, enforcer.msgIDs, 5)
	require.NotEmpty(t, enforcer.samples)
}

func TestShortVariantRotationTripsSimilarRule(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	// Alternating 8 and 7 rune variants: never five exact copies, but the
	// pair ratio is 14/15, well past the similarity threshold.
	variants := []string{"aaaaaaaa", "aaaaaaa", "aaaaaaaa", "aaaaaaa"}
	for i, text := range variants {
		*now = now.Add(time.Second)
		suspended, err := m.Observe(ctx, u, text, int64(i+1))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	*now = now.Add(time.Second)
	suspended, err := m.Observe(ctx, u, "aaaaaaaa", 5)
	require.NoError(t, err)
	require.True(t, suspended)
	require.Equal(t, audit.MatchSimilarRepeat, enforcer.match)
	require.Equal(t, ReasonRepeat, enforcer.reason)
	require.Len(t, enforcer.msgIDs, 5)
}

func TestDissimilarMessagesDoNotTrip(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	texts := []string{
		"good morning everyone",
		"what a lovely day outside",
		"anyone up for a game tonight",
		"the build is green again",
		"lunch was great today",
		"see you all tomorrow",
	}
	for i, text := range texts {
		*now = now.Add(time.Second)
		suspended, err := m.Observe(ctx, u, text, int64(i+1))
		require.NoError(t, err)
		require.False(t, suspended)
	}
	require.Zero(t, enforcer.calls)
}

func TestForgetResetsWindows(t *testing.T) {
	m, enforcer, now := newTestMonitor(t)
	ctx := context.Background()
	u := user(5)

	for i := 1; i <= 19; i++ {
		*now = now.Add(100 * time.Millisecond)
		suspended, err := m.Observe(ctx, u, fillerLines[i-1], int64(i))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	m.Forget(u.ID)

	// The cleared window means the next message starts from scratch.
	*now = now.Add(100 * time.Millisecond)
	suspended, err := m.Observe(ctx, u, fillerLines[19], 20)
	require.NoError(t, err)
	require.False(t, suspended)
	require.Zero(t, enforcer.calls)
}

func TestOwnerAndSuspendedExempt(t *testing.T) {
	m, enforcer, _ := newTestMonitor(t)
	ctx := context.Background()

	owner := &model.User{ID: model.OwnerUserID, Username: "owner"}
	for i := 1; i <= 25; i++ {
		suspended, err := m.Observe(ctx, owner, "spam", int64(i))
		require.NoError(t, err)
		require.False(t, suspended)
	}

	already := &model.User{ID: 9, Username: "niner", Suspended: true}
	for i := 1; i <= 25; i++ {
		suspended, err := m.Observe(ctx, already, "spam", int64(i))
		require.NoError(t, err)
		require.False(t, suspended)
	}
	require.Zero(t, enforcer.calls)
}
