package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
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

type wsHarness struct {
	server *httptest.Server
	auth   *auth.Service
}

func newWSHarness(t *testing.T) *wsHarness {
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
		BurstWindow:         30 * time.Second,
		BurstCount:          20,
		SpamWindow:          45 * time.Second,
		SimilarityThreshold: 0.88,
		SpamLimit:           5,
		ShortLength:         8,
		ShortRepeat:         4,
	}, mod, sink, logger)

	authSvc := auth.NewService(st, sink, filter, logger, auth.Options{
		Secret:           []byte("ws-test-secret"),
		TokenTTL:         time.Hour,
		InactivityWindow: 30 * 24 * time.Hour,
	})
	chat := service.NewChat(st, hub, seq, pres, monitor, filter, noopNotifier{}, sink, logger)
	handler := NewHandler(hub, chat, authSvc, sink, logger)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &wsHarness{server: server, auth: authSvc}
}

type noopNotifier struct{}

func (noopNotifier) PublicMessagePosted(context.Context, int64, int64) {}
func (noopNotifier) DMPosted(context.Context, int64, int64)           {}

func (h *wsHarness) token(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	_, err := h.auth.Register(ctx, username, "", "password123", "127.0.0.1")
	require.NoError(t, err)
	token, _, _, err := h.auth.Login(ctx, username, "password123", "test-agent", "127.0.0.1")
	require.NoError(t, err)
	return token
}

func (h *wsHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ, token string, data any) {
	t.Helper()
	frame := map[string]any{"type": typ}
	if data != nil {
		frame["data"] = data
	}
	if token != "" {
		frame["credentials"] = map[string]string{"scheme": "Bearer", "credentials": token}
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func read(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(frame["type"], &typ))
	return typ
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]json.RawMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := read(t, conn)
		if frameType(t, frame) == want {
			return frame
		}
	}
	t.Fatalf("frame of type %q never arrived", want)
	return nil
}

func errorCode(t *testing.T, frame map[string]json.RawMessage) int {
	t.Helper()
	var e struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frame["error"], &e))
	return e.Code
}

func TestUnknownTypeRejected(t *testing.T) {
	h := newWSHarness(t)
	conn := h.dial(t)

	send(t, conn, "bogusCommand", "", nil)
	frame := read(t, conn)
	require.Equal(t, "bogusCommand", frameType(t, frame))
	require.Equal(t, 400, errorCode(t, frame))
}

func TestCommandsRequireCredentials(t *testing.T) {
	h := newWSHarness(t)
	conn := h.dial(t)

	send(t, conn, CmdSendMessage, "", map[string]any{"content": "hi"})
	frame := read(t, conn)
	require.Equal(t, 401, errorCode(t, frame))

	send(t, conn, CmdSendMessage, "not-a-jwt", map[string]any{"content": "hi"})
	frame = read(t, conn)
	require.Equal(t, 401, errorCode(t, frame))
}

func TestSendMessageRoundTrip(t *testing.T) {
	h := newWSHarness(t)
	token := h.token(t, "alice")
	conn := h.dial(t)

	send(t, conn, CmdSendMessage, token, map[string]any{"content": "hello from ws"})

	reply := readType(t, conn, CmdSendMessage)
	var result struct {
		Status  string `json:"status"`
		Message struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(reply["data"], &result))
	require.Equal(t, "success", result.Status)
	require.Equal(t, "hello from ws", result.Message.Content)

	// The bound session also receives the sequenced broadcast.
	batch := readType(t, conn, "updates")
	var updates []struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(batch["updates"], &updates))
	require.Equal(t, "newMessage", updates[0].Type)
}

func TestConnectionSurvivesCommandErrors(t *testing.T) {
	h := newWSHarness(t)
	token := h.token(t, "alice")
	conn := h.dial(t)

	// Empty message is rejected, then a valid one still goes through on
	// the same connection.
	send(t, conn, CmdSendMessage, token, map[string]any{"content": "   "})
	frame := readType(t, conn, CmdSendMessage)
	require.Equal(t, 400, errorCode(t, frame))

	send(t, conn, CmdPing, token, nil)
	reply := readType(t, conn, CmdPing)
	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(reply["data"], &status))
	require.Equal(t, "success", status.Status)
}

func TestGetUpdatesOverSocket(t *testing.T) {
	h := newWSHarness(t)
	token := h.token(t, "alice")

	first := h.dial(t)
	send(t, first, CmdSendMessage, token, map[string]any{"content": "persisted line"})
	readType(t, first, "updates")
	require.NoError(t, first.Close())

	second := h.dial(t)
	send(t, second, CmdGetUpdates, token, map[string]any{"lastSeq": 0})

	batch := readType(t, second, "updates")
	var seq int64
	require.NoError(t, json.Unmarshal(batch["seq"], &seq))
	require.Equal(t, int64(1), seq)

	reply := readType(t, second, CmdGetUpdates)
	var result struct {
		Status      string `json:"status"`
		LastSeq     int64  `json:"lastSeq"`
		MissedCount int    `json:"missedCount"`
	}
	require.NoError(t, json.Unmarshal(reply["data"], &result))
	require.Equal(t, "ok", result.Status)
	require.Equal(t, int64(1), result.LastSeq)
	require.Equal(t, 1, result.MissedCount)
}
