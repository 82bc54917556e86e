package notify

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/store"
)

type captureSink struct {
	mu        sync.Mutex
	delivered []PushMessage
	ch        chan PushMessage
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan PushMessage, 16)}
}

func (s *captureSink) Deliver(_ context.Context, msg PushMessage) error {
	s.mu.Lock()
	s.delivered = append(s.delivered, msg)
	s.mu.Unlock()
	s.ch <- msg
	return nil
}

func (s *captureSink) wait(t *testing.T, n int) []PushMessage {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.ch:
		case <-time.After(3 * time.Second):
			t.Fatalf("delivery %d of %d never arrived", i+1, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PushMessage, len(s.delivered))
	copy(out, s.delivered)
	return out
}

type pipeHarness struct {
	store *store.Store
	sink  *captureSink
	pub   *Publisher
}

func newPipeHarness(t *testing.T) *pipeHarness {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	wlogger := watermill.NewSlogLogger(logger)
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, wlogger)

	sink := newCaptureSink()
	consumer := NewConsumer(st, sink, logger)

	router, err := message.NewRouter(message.RouterConfig{}, wlogger)
	require.NoError(t, err)
	require.NoError(t, consumer.RegisterHandlers(router, bus, bus))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(ctx)
	}()
	<-router.Running()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &pipeHarness{store: st, sink: sink, pub: NewPublisher(bus, logger)}
}

func (h *pipeHarness) user(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x"}
	require.NoError(t, h.store.CreateUser(context.Background(), u))
	return u
}

func TestPublicMessageFanOutSkipsAuthor(t *testing.T) {
	h := newPipeHarness(t)
	ctx := context.Background()

	author := h.user(t, "alice")
	reader := h.user(t, "bob")
	third := h.user(t, "carol")

	require.NoError(t, h.store.UpsertPushSubscription(ctx, author.ID, "https://push/author", "p", "a"))
	require.NoError(t, h.store.UpsertPushSubscription(ctx, reader.ID, "https://push/reader", "p", "a"))
	require.NoError(t, h.store.SaveFcmToken(ctx, third.ID, "fcm-carol"))

	msg, err := h.store.CreateMessage(ctx, author.ID, "hello push", nil)
	require.NoError(t, err)

	h.pub.PublicMessagePosted(ctx, msg.ID, author.ID)

	delivered := h.sink.wait(t, 2)
	targets := map[int64]bool{}
	for _, d := range delivered {
		targets[d.UserID] = true
		require.Equal(t, "alice", d.Title)
		require.Equal(t, "hello push", d.Body)
	}
	require.True(t, targets[reader.ID])
	require.True(t, targets[third.ID])
	require.False(t, targets[author.ID])
}

func TestDMPushCarriesNoContent(t *testing.T) {
	h := newPipeHarness(t)
	ctx := context.Background()

	sender := h.user(t, "alice")
	recipient := h.user(t, "bob")
	require.NoError(t, h.store.UpsertPushSubscription(ctx, recipient.ID, "https://push/bob", "p", "a"))

	env := &model.DMEnvelope{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		IV:          "iv", Ciphertext: "secret-ciphertext", Salt: "s", IV2: "iv2", WrappedMK: "mk",
	}
	require.NoError(t, h.store.CreateDMEnvelope(ctx, env))

	h.pub.DMPosted(ctx, env.ID, sender.ID)

	delivered := h.sink.wait(t, 1)
	require.Equal(t, recipient.ID, delivered[0].UserID)
	require.Equal(t, "alice", delivered[0].Title)
	require.Equal(t, "You received an encrypted message", delivered[0].Body)
	require.NotContains(t, delivered[0].Body, "secret-ciphertext")
}

func TestDeletedMessageIsNotPushed(t *testing.T) {
	h := newPipeHarness(t)
	ctx := context.Background()

	author := h.user(t, "alice")
	reader := h.user(t, "bob")
	require.NoError(t, h.store.UpsertPushSubscription(ctx, reader.ID, "https://push/bob", "p", "a"))

	msg, err := h.store.CreateMessage(ctx, author.ID, "spam", nil)
	require.NoError(t, err)
	require.NoError(t, h.store.DeleteMessage(ctx, msg.ID))

	h.pub.PublicMessagePosted(ctx, msg.ID, author.ID)

	select {
	case <-h.sink.ch:
		t.Fatal("push delivered for a deleted message")
	case <-time.After(300 * time.Millisecond):
	}
}
