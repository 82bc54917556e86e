package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

func TestMessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	first, err := s.CreateMessage(ctx, alice.ID, "hello room", nil)
	require.NoError(t, err)
	require.NotNil(t, first.Author)
	require.Equal(t, "alice", first.Author.Username)

	reply, err := s.CreateMessage(ctx, bob.ID, "hi alice", &first.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	require.Equal(t, first.ID, reply.ReplyTo.ID)

	t.Run("list ascending", func(t *testing.T) {
		msgs, err := s.ListMessages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, first.ID, msgs[0].ID)
		require.Equal(t, reply.ID, msgs[1].ID)
	})

	t.Run("edit marks edited", func(t *testing.T) {
		edited, err := s.UpdateMessageContent(ctx, first.ID, "hello edited")
		require.NoError(t, err)
		require.True(t, edited.IsEdited)
		require.Equal(t, "hello edited", edited.Content)

		_, err = s.UpdateMessageContent(ctx, 999, "nope")
		require.ErrorIs(t, err, model.ErrMessageNotFound)
	})

	t.Run("delete removes children", func(t *testing.T) {
		_, err := s.ToggleReaction(ctx, first.ID, bob.ID, "👍")
		require.NoError(t, err)

		require.NoError(t, s.DeleteMessage(ctx, first.ID))
		_, err = s.GetMessage(ctx, first.ID)
		require.ErrorIs(t, err, model.ErrMessageNotFound)

		reactions, err := s.ListMessageReactions(ctx, first.ID)
		require.NoError(t, err)
		require.Empty(t, reactions)

		// The reply keeps its dangling reference and renders without it.
		got, err := s.GetMessage(ctx, reply.ID)
		require.NoError(t, err)
		require.Nil(t, got.ReplyTo)
		require.Nil(t, model.BuildMessagePayload(got).ReplyTo)
	})

	t.Run("batch delete by ids", func(t *testing.T) {
		var ids []int64
		for i := 0; i < 3; i++ {
			m, err := s.CreateMessage(ctx, alice.ID, "spam", nil)
			require.NoError(t, err)
			ids = append(ids, m.ID)
		}
		n, err := s.DeleteMessagesByIDs(ctx, append(ids, 4242))
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
	})
}

func TestReactionToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	msg, err := s.CreateMessage(ctx, alice.ID, "react to me", nil)
	require.NoError(t, err)

	action, err := s.ToggleReaction(ctx, msg.ID, bob.ID, "🔥")
	require.NoError(t, err)
	require.Equal(t, model.ReactionAdded, action)

	action, err = s.ToggleReaction(ctx, msg.ID, bob.ID, "🔥")
	require.NoError(t, err)
	require.Equal(t, model.ReactionRemoved, action)

	action, err = s.ToggleReaction(ctx, msg.ID, bob.ID, "🔥")
	require.NoError(t, err)
	require.Equal(t, model.ReactionAdded, action)

	t.Run("grouped payload", func(t *testing.T) {
		_, err := s.ToggleReaction(ctx, msg.ID, alice.ID, "🔥")
		require.NoError(t, err)

		got, err := s.GetMessage(ctx, msg.ID)
		require.NoError(t, err)
		p := model.BuildMessagePayload(got)
		require.Len(t, p.Reactions, 1)
		require.Equal(t, "🔥", p.Reactions[0].Emoji)
		require.Equal(t, 2, p.Reactions[0].Count)
		require.Len(t, p.Reactions[0].Users, 2)
	})
}

func TestDMEnvelopes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	send := func(from, to int64, ct string) *model.DMEnvelope {
		env := &model.DMEnvelope{
			SenderID: from, RecipientID: to,
			IV: "iv", Ciphertext: ct, Salt: "salt", IV2: "iv2", WrappedMK: "mk",
		}
		require.NoError(t, s.CreateDMEnvelope(ctx, env))
		return env
	}

	first := send(alice.ID, bob.ID, "c1")
	send(bob.ID, alice.ID, "c2")
	send(alice.ID, carol.ID, "c3")

	t.Run("history covers both directions", func(t *testing.T) {
		envs, err := s.ListDMsBetween(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, envs, 2)
		require.Equal(t, "c1", envs[0].Ciphertext)
		require.Equal(t, "c2", envs[1].Ciphertext)
	})

	t.Run("edit keeps timestamp", func(t *testing.T) {
		before, err := s.GetDMEnvelope(ctx, first.ID)
		require.NoError(t, err)

		updated, err := s.UpdateDMEnvelope(ctx, first.ID, "iv9", "c9", "salt9", "iv29", "mk9")
		require.NoError(t, err)
		require.Equal(t, "c9", updated.Ciphertext)
		require.True(t, updated.Timestamp.Equal(before.Timestamp))
	})

	t.Run("peers distinct with latest first", func(t *testing.T) {
		peers, err := s.ListDMPeers(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, peers, 2)
		ids := []int64{peers[0].UserID, peers[1].UserID}
		require.Contains(t, ids, bob.ID)
		require.Contains(t, ids, carol.ID)
	})

	t.Run("delete removes envelope", func(t *testing.T) {
		require.NoError(t, s.DeleteDMEnvelope(ctx, first.ID))
		_, err := s.GetDMEnvelope(ctx, first.ID)
		require.ErrorIs(t, err, model.ErrEnvelopeNotFound)
	})
}

func TestUpdateLogConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "alice")

	require.NoError(t, s.AppendUpdateLog(ctx, u.ID, 1, `[{"type":"typing"}]`))
	require.NoError(t, s.AppendUpdateLog(ctx, u.ID, 2, `[{"type":"newMessage"}]`))

	t.Run("duplicate sequence is a distinct error", func(t *testing.T) {
		err := s.AppendUpdateLog(ctx, u.ID, 2, `[{"type":"other"}]`)
		require.ErrorIs(t, err, model.ErrDuplicateSequence)

		// First write wins.
		rows, err := s.ListUpdateLog(ctx, u.ID, 1, 2)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Contains(t, rows[0].Updates, "newMessage")
	})

	t.Run("range replay", func(t *testing.T) {
		require.NoError(t, s.AppendUpdateLog(ctx, u.ID, 3, `[]`))
		rows, err := s.ListUpdateLog(ctx, u.ID, 1, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, int64(2), rows[0].Sequence)
		require.Equal(t, int64(3), rows[1].Sequence)
	})

	t.Run("max sequences", func(t *testing.T) {
		maxes, err := s.MaxLoggedSequences(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(3), maxes[u.ID])
	})

	t.Run("prune keeps highest sequence", func(t *testing.T) {
		n, err := s.PruneUpdateLog(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		maxes, err := s.MaxLoggedSequences(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(3), maxes[u.ID])
	})
}
