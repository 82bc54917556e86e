package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/auth"
	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/service"
)

// inboundFrame is the single accepted client frame shape. Credentials ride
// on every frame; the connection itself stays anonymous until one checks
// out.
type inboundFrame struct {
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	Credentials *credentials    `json:"credentials"`
}

type credentials struct {
	Scheme      string `json:"scheme"`
	Credentials string `json:"credentials"`
}

// Handler owns the socket lifecycle: upgrade, session registration, the
// writer pump and per-frame command dispatch.
type Handler struct {
	hub    *registry.Hub
	chat   *service.Chat
	auth   *auth.Service
	sink   *audit.Sink
	logger *slog.Logger

	upgrader websocket.Upgrader
}

func NewHandler(hub *registry.Hub, chat *service.Chat, authSvc *auth.Service, sink *audit.Sink, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		chat:   chat,
		auth:   authSvc,
		sink:   sink,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	sess := h.hub.Register(r.Context())
	connID := sess.ID().String()[:8]
	ip := clientIP(r)
	h.sink.WSConnect(connID, ip)
	h.logger.Info("ws opened", "conn_id", connID, "ip", ip)

	go h.writePump(conn, sess)

	closeCode := websocket.CloseNormalClosure
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				closeCode = ce.Code
			} else {
				closeCode = websocket.CloseAbnormalClosure
			}
			break
		}
		h.handleFrame(r.Context(), sess, connID, raw)
	}

	h.hub.Unregister(context.Background(), sess)
	_ = conn.Close()
	h.sink.WSDisconnect(connID, closeCode)
	h.logger.Info("ws closed", "conn_id", connID, "close_code", closeCode)
}

// writePump drains the session's outbound channel onto the socket. One
// stalled socket only ever blocks itself; the hub closes the session when
// its buffer saturates.
func (h *Handler) writePump(conn *websocket.Conn, sess *registry.Session) {
	defer conn.Close()
	for {
		select {
		case <-sess.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame, ok := <-sess.Outbound():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Warn("ws write failed", "error", err)
				return
			}
		}
	}
}

// handleFrame authenticates and dispatches a single command. Errors are
// answered on the same type; the connection always survives them.
func (h *Handler) handleFrame(ctx context.Context, sess *registry.Session, connID string, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		h.hub.DirectSend(sess, registry.ErrorFrame("error", 400, "Invalid type"))
		return
	}
	cmd, known := commands[frame.Type]
	if !known {
		h.hub.DirectSend(sess, registry.ErrorFrame(frame.Type, 400, "Invalid type"))
		return
	}

	var user *model.User
	if cmd.authRequired {
		identity, err := h.authenticate(ctx, frame.Credentials)
		if err != nil {
			re := model.AsRequestError(err)
			h.hub.DirectSend(sess, registry.ErrorFrame(frame.Type, re.Code, re.Detail))
			return
		}
		user = identity.User
		h.hub.Bind(sess, user.ID, user.Username)
	}

	h.sink.WSEvent(sess.Username(), connID, frame.Type)

	result, err := h.dispatch(ctx, sess, user, frame.Type, frame.Data)
	if err != nil {
		re := model.AsRequestError(err)
		if re.Code == 500 {
			h.logger.Error("command failed", "type", frame.Type, "conn_id", connID, "error", err)
		}
		h.hub.DirectSend(sess, registry.ErrorFrame(frame.Type, re.Code, re.Detail))
		return
	}
	if cmd.silent || result == nil {
		return
	}
	h.hub.DirectSend(sess, registry.DataFrame(frame.Type, result))
}

func (h *Handler) authenticate(ctx context.Context, creds *credentials) (*auth.Identity, error) {
	if creds == nil || !strings.EqualFold(creds.Scheme, "Bearer") || creds.Credentials == "" {
		return nil, model.AuthRequired("Authentication required")
	}
	return h.auth.Authenticate(ctx, creds.Credentials)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
