package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/moderation"
	"github.com/fromchat/chat-core-service/internal/presence"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/sequence"
	"github.com/fromchat/chat-core-service/internal/service"
	"github.com/fromchat/chat-core-service/internal/spam"
	"github.com/fromchat/chat-core-service/internal/store"
)

type apiHarness struct {
	server     *httptest.Server
	api        *API
	auth       *auth.Service
	uploadsDir string
}

type noopNotifier struct{}

func (noopNotifier) PublicMessagePosted(context.Context, int64, int64) {}
func (noopNotifier) DMPosted(context.Context, int64, int64)            {}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	seq := sequence.NewSequencer(st, logger)
	hub := registry.NewHub(seq, st, logger, registry.WithFlushDelay(10*time.Millisecond))
	t.Cleanup(hub.Shutdown)
	pres := presence.NewEngine(hub, logger)

	filter, err := profanity.NewFilter(filepath.Join(t.TempDir(), "blocklist.json"), logger)
	require.NoError(t, err)
	sink := audit.NewSink(audit.Config{Dir: t.TempDir()})
	t.Cleanup(func() { _ = sink.Close() })

	mod := moderation.NewService(st, hub, sink, filter, logger)
	monitor := spam.NewMonitor(spam.Config{
		BurstWindow:         10 * time.Second,
		BurstCount:          30,
		SpamWindow:          45 * time.Second,
		SimilarityThreshold: 0.88,
		SpamLimit:           5,
		ShortLength:         8,
		ShortRepeat:         4,
	}, mod, sink, logger)

	authSvc := auth.NewService(st, sink, filter, logger, auth.Options{
		Secret:           []byte("api-test-secret"),
		TokenTTL:         time.Hour,
		InactivityWindow: 30 * 24 * time.Hour,
	})
	chat := service.NewChat(st, hub, seq, pres, monitor, filter, noopNotifier{}, sink, logger)

	uploadsDir := t.TempDir()
	api := NewAPI(st, authSvc, chat, mod, hub, sink, logger,
		uploadsDir, []string{"stun:stun.example.org:3478"})

	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)
	return &apiHarness{server: server, api: api, auth: authSvc, uploadsDir: uploadsDir}
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

// register creates an account over the API and returns a login token. The
// first call in a test owns the instance.
func (h *apiHarness) register(t *testing.T, username string) string {
	t.Helper()
	resp, _ := h.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token string
	require.NoError(t, json.Unmarshal(body["token"], &token))
	return token
}

func userID(t *testing.T, h *apiHarness, token string) int64 {
	t.Helper()
	_, body := h.do(t, http.MethodGet, "/api/check_auth", token, nil)
	var user struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body["user"], &user))
	return user.ID
}

func TestRegisterLoginCheckAuth(t *testing.T) {
	h := newAPIHarness(t)
	token := h.register(t, "alice")

	resp, body := h.do(t, http.MethodGet, "/api/check_auth", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(body["user"], &user))
	require.Equal(t, "alice", user.Username)

	// No token, bad token.
	resp, _ = h.do(t, http.MethodGet, "/api/check_auth", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/api/check_auth", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := newAPIHarness(t)
	h.register(t, "alice")

	resp, body := h.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var e struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(body["error"], &e))
	require.Equal(t, "Invalid username or password", e.Detail)
}

func TestOwnerGating(t *testing.T) {
	h := newAPIHarness(t)
	h.register(t, "owner")
	memberToken := h.register(t, "bob")

	resp, _ := h.do(t, http.MethodPost, "/api/user/1/suspend", memberToken,
		map[string]string{"reason": "nope"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/api/moderation/blocklist", memberToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSuspendFlow(t *testing.T) {
	h := newAPIHarness(t)
	ownerToken := h.register(t, "owner")
	bobToken := h.register(t, "bob")
	bobID := userID(t, h, bobToken)

	resp, _ := h.do(t, http.MethodPost, "/api/user/1/suspend", ownerToken,
		map[string]string{"reason": "no"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "owner is immune")

	path := "/api/user/" + jsonNumber(bobID) + "/suspend"
	resp, _ = h.do(t, http.MethodPost, path, ownerToken, map[string]string{"reason": "spamming"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Suspended accounts are refused at auth time with the stored reason.
	resp, body := h.do(t, http.MethodGet, "/api/check_auth", bobToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var e struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(body["error"], &e))
	require.Contains(t, e.Detail, "spamming")

	resp, _ = h.do(t, http.MethodPost, "/api/user/"+jsonNumber(bobID)+"/unsuspend", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/api/check_auth", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClearRateLimit(t *testing.T) {
	h := newAPIHarness(t)
	ownerToken := h.register(t, "owner")
	bobToken := h.register(t, "bob")
	bobID := userID(t, h, bobToken)

	resp, _ := h.do(t, http.MethodPost, "/api/user/"+jsonNumber(bobID)+"/clear-rate-limit", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/user/99999/clear-rate-limit", ownerToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/user/"+jsonNumber(bobID)+"/clear-rate-limit", bobToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBlocklistManagement(t *testing.T) {
	h := newAPIHarness(t)
	ownerToken := h.register(t, "owner")

	resp, body := h.do(t, http.MethodPost, "/api/moderation/blocklist", ownerToken,
		map[string]any{"words": []string{"badword"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var words []string
	require.NoError(t, json.Unmarshal(body["words"], &words))
	require.Contains(t, words, "badword")

	resp, _ = h.do(t, http.MethodDelete, "/api/moderation/blocklist", ownerToken,
		map[string]any{"words": []string{"badword"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = h.do(t, http.MethodGet, "/api/moderation/blocklist", ownerToken, nil)
	words = nil
	require.NoError(t, json.Unmarshal(body["words"], &words))
	require.NotContains(t, words, "badword")
}

func TestCryptoKeyAndBackupRoundTrip(t *testing.T) {
	h := newAPIHarness(t)
	aliceToken := h.register(t, "alice")
	bobToken := h.register(t, "bob")
	aliceID := userID(t, h, aliceToken)

	resp, _ := h.do(t, http.MethodGet, "/api/crypto/public-key", aliceToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, "/api/crypto/public-key", aliceToken,
		map[string]string{"public_key": `{"kty":"EC","crv":"P-256"}`})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Bob can fetch Alice's published key by id.
	resp, body := h.do(t, http.MethodGet, "/api/crypto/public-key/"+jsonNumber(aliceID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var key string
	require.NoError(t, json.Unmarshal(body["public_key"], &key))
	require.Contains(t, key, "P-256")

	resp, _ = h.do(t, http.MethodPut, "/api/crypto/backup", aliceToken,
		map[string]string{"ciphertext": "c1", "iv": "i1", "salt": "s1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/crypto/backup", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ct string
	require.NoError(t, json.Unmarshal(body["ciphertext"], &ct))
	require.Equal(t, "c1", ct)

	// Backups are per user.
	resp, _ = h.do(t, http.MethodGet, "/api/crypto/backup", bobToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPushSubscribeAndUnsubscribe(t *testing.T) {
	h := newAPIHarness(t)
	token := h.register(t, "alice")

	resp, _ := h.do(t, http.MethodPost, "/api/push/subscribe", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/push/subscribe", token, map[string]string{
		"endpoint": "https://push.example.org/ep", "p256dh": "pk", "auth": "ak",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/api/push/unsubscribe", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEncryptedFileGate(t *testing.T) {
	h := newAPIHarness(t)
	aliceToken := h.register(t, "alice")
	bobToken := h.register(t, "bob")
	eveToken := h.register(t, "eve")
	aliceID := userID(t, h, aliceToken)
	bobID := userID(t, h, bobToken)

	name := jsonNumber(aliceID) + "_" + jsonNumber(bobID) + "_1700000000_blob.bin"
	dir := filepath.Join(h.uploadsDir, "files", "encrypted")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("ciphertext"), 0o644))

	for _, token := range []string{aliceToken, bobToken} {
		resp, _ := h.do(t, http.MethodGet, "/api/uploads/files/encrypted/"+name, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := h.do(t, http.MethodGet, "/api/uploads/files/encrypted/"+name, eveToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/api/uploads/files/encrypted/..%2Fescape", aliceToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeviceManagement(t *testing.T) {
	h := newAPIHarness(t)
	h.register(t, "alice")

	// Second login creates a second device session.
	resp, body := h.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second string
	require.NoError(t, json.Unmarshal(body["token"], &second))

	_, body = h.do(t, http.MethodGet, "/api/devices", second, nil)
	var devices []struct {
		SessionID string `json:"session_id"`
		Current   bool   `json:"current"`
	}
	require.NoError(t, json.Unmarshal(body["devices"], &devices))
	require.Len(t, devices, 2)

	resp, body = h.do(t, http.MethodPost, "/api/devices/logout-all", second, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var revoked int
	require.NoError(t, json.Unmarshal(body["revoked"], &revoked))
	require.Equal(t, 1, revoked)

	resp, _ = h.do(t, http.MethodGet, "/api/check_auth", second, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsRequiresServiceToken(t *testing.T) {
	h := newAPIHarness(t)
	h.register(t, "owner")
	memberToken := h.register(t, "bob")

	resp, _ := h.do(t, http.MethodGet, "/internal/stats", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/internal/stats", memberToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	svc, err := h.auth.MintServiceToken("ops", time.Minute)
	require.NoError(t, err)
	resp, body := h.do(t, http.MethodGet, "/internal/stats", svc, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "sessions")
}

func TestICEServers(t *testing.T) {
	h := newAPIHarness(t)
	token := h.register(t, "alice")

	resp, body := h.do(t, http.MethodGet, "/api/webrtc/ice", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var servers []struct {
		URLs string `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(body["iceServers"], &servers))
	require.Len(t, servers, 1)
	require.Equal(t, "stun:stun.example.org:3478", servers[0].URLs)
}

func TestPublicHistoryEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	token := h.register(t, "alice")

	id := userID(t, h, token)
	require.Equal(t, int64(1), id)

	resp, body := h.do(t, http.MethodGet, "/api/get_messages", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []json.RawMessage
	require.NoError(t, json.Unmarshal(body["messages"], &msgs))
	require.Empty(t, msgs)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
