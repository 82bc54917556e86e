package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/store"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	filter, err := profanity.NewFilter(filepath.Join(t.TempDir(), "blocklist.json"), logger)
	require.NoError(t, err)
	sink := audit.NewSink(audit.Config{Dir: t.TempDir()})
	t.Cleanup(func() { _ = sink.Close() })

	svc := NewService(st, sink, filter, logger, Options{
		Secret:           []byte("test-secret"),
		TokenTTL:         time.Hour,
		InactivityWindow: 30 * 24 * time.Hour,
	})
	return svc, st
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "", "password123", "127.0.0.1")
	re := model.AsRequestError(err)
	require.Equal(t, 400, re.Code)

	_, err = svc.Register(ctx, "validname", "", "short", "127.0.0.1")
	re = model.AsRequestError(err)
	require.Equal(t, 400, re.Code)

	_, err = svc.Register(ctx, "validname", "", "password123", "127.0.0.1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "validname", "", "password123", "127.0.0.1")
	re = model.AsRequestError(err)
	require.Equal(t, 409, re.Code)
}

func TestFirstAccountIsOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "boss", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	require.True(t, first.IsOwner())

	second, err := svc.Register(ctx, "member", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	require.False(t, second.IsOwner())
}

func TestOwnerUsernameReserved(t *testing.T) {
	svc, _ := newTestService(t)
	svc.opts.OwnerUsername = "boss"
	ctx := context.Background()

	// The reserved name is open while no accounts exist.
	first, err := svc.Register(ctx, "boss", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	require.True(t, first.IsOwner())

	svc2, _ := newTestService(t)
	svc2.opts.OwnerUsername = "boss"
	_, err = svc2.Register(ctx, "member", "", "password123", "127.0.0.1")
	require.NoError(t, err)

	// Once any account exists the reserved name is no longer claimable.
	_, err = svc2.Register(ctx, "BOSS", "", "password123", "127.0.0.1")
	require.Equal(t, 409, model.AsRequestError(err).Code)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "Alice", "password123", "127.0.0.1")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "alice", "wrongpass", testUA, "127.0.0.1")
	require.Equal(t, 401, model.AsRequestError(err).Code)

	token, user, sess, err := svc.Login(ctx, "alice", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, model.DeviceDesktop, sess.DeviceType)
	require.Equal(t, "Chrome", sess.BrowserName)

	id, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, id.User.ID)
	require.Equal(t, sess.SessionID, id.Session.SessionID)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "not-a-token")
	require.Equal(t, 401, model.AsRequestError(err).Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	token, _, _, err := svc.Login(ctx, "alice", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)

	id, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, id))

	_, err = svc.Authenticate(ctx, token)
	require.Equal(t, 401, model.AsRequestError(err).Code)
}

func TestInactivityWindowRevokes(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	token, user, sess, err := svc.Login(ctx, "alice", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)

	// Session unseen for longer than the window: expired and revoked.
	stale := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, st.TouchDeviceSession(ctx, sess.ID, stale))

	_, err = svc.Authenticate(ctx, token)
	require.Equal(t, 401, model.AsRequestError(err).Code)

	row, err := st.GetDeviceSession(ctx, user.ID, sess.SessionID)
	require.NoError(t, err)
	require.True(t, row.Revoked)
}

func TestAuthenticateSlidesLastSeen(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	token, user, sess, err := svc.Login(ctx, "alice", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)

	old := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, st.TouchDeviceSession(ctx, sess.ID, old))

	_, err = svc.Authenticate(ctx, token)
	require.NoError(t, err)

	row, err := st.GetDeviceSession(ctx, user.ID, sess.SessionID)
	require.NoError(t, err)
	require.True(t, row.LastSeen.After(old.Add(time.Hour)))
}

func TestSuspendedUserCannotAuthenticate(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "boss", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	user, err := svc.Register(ctx, "member", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	token, _, _, err := svc.Login(ctx, "member", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, st.SuspendUser(ctx, user.ID, "Automatic suspension: repeated spam messages"))

	_, err = svc.Authenticate(ctx, token)
	re := model.AsRequestError(err)
	require.Equal(t, 403, re.Code)
	require.Equal(t, "Automatic suspension: repeated spam messages", re.Detail)
}

func TestOwnerAutoUnsuspendedAtAuth(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	owner, err := svc.Register(ctx, "boss", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	require.True(t, owner.IsOwner())
	token, _, _, err := svc.Login(ctx, "boss", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, st.SuspendUser(ctx, owner.ID, "should never stick"))

	id, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	require.False(t, id.User.Suspended)

	row, err := st.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	require.False(t, row.Suspended)
}

func TestChangePasswordRevokesSiblings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123", "127.0.0.1")
	require.NoError(t, err)

	tokenA, _, _, err := svc.Login(ctx, "alice", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)
	tokenB, _, _, err := svc.Login(ctx, "alice", "password123", testUA, "10.0.0.2")
	require.NoError(t, err)

	idA, err := svc.Authenticate(ctx, tokenA)
	require.NoError(t, err)

	require.Equal(t, 401, model.AsRequestError(svc.ChangePassword(ctx, idA, "wrong", "newpassword1")).Code)
	require.NoError(t, svc.ChangePassword(ctx, idA, "password123", "newpassword1"))

	// The acting session survives; the other one is revoked.
	_, err = svc.Authenticate(ctx, tokenA)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, tokenB)
	require.Equal(t, 401, model.AsRequestError(err).Code)

	_, _, _, err = svc.Login(ctx, "alice", "newpassword1", testUA, "127.0.0.1")
	require.NoError(t, err)
}

func TestServiceTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.MintServiceToken("top", time.Minute)
	require.NoError(t, err)
	subject, err := svc.VerifyServiceToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "top", subject)

	// A plain member token is not enough for the operational surface.
	_, err = svc.Register(ctx, "boss", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "member", "", "password123", "127.0.0.1")
	require.NoError(t, err)
	memberToken, _, _, err := svc.Login(ctx, "member", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)
	_, err = svc.VerifyServiceToken(ctx, memberToken)
	require.Equal(t, 403, model.AsRequestError(err).Code)

	ownerToken, _, _, err := svc.Login(ctx, "boss", "password123", testUA, "127.0.0.1")
	require.NoError(t, err)
	subject, err = svc.VerifyServiceToken(ctx, ownerToken)
	require.NoError(t, err)
	require.Equal(t, "boss", subject)
}
