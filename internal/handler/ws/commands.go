package ws

import (
	"context"
	"encoding/json"

	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/service"
)

// Command types accepted on the socket.
const (
	CmdPing              = "ping"
	CmdGetMessages       = "getMessages"
	CmdSendMessage       = "sendMessage"
	CmdEditMessage       = "editMessage"
	CmdDeleteMessage     = "deleteMessage"
	CmdDMSend            = "dmSend"
	CmdDMEdit            = "dmEdit"
	CmdDMDelete          = "dmDelete"
	CmdAddReaction       = "addReaction"
	CmdAddDMReaction     = "addDmReaction"
	CmdSubscribeStatus   = "subscribeStatus"
	CmdUnsubscribeStatus = "unsubscribeStatus"
	CmdTyping            = "typing"
	CmdStopTyping        = "stopTyping"
	CmdDMTyping          = "dmTyping"
	CmdStopDMTyping      = "stopDmTyping"
	CmdCallSignaling     = "call_signaling"
	CmdCallVideoToggle   = "call_video_toggle"
	CmdCallScreenToggle  = "call_screen_share_toggle"
	CmdGetUpdates        = "getUpdates"
)

type command struct {
	authRequired bool
	// silent commands send no reply frame on success.
	silent bool
}

// commands is the dispatch registry. Unknown types are rejected with 400
// before any credential work happens.
var commands = map[string]command{
	CmdPing:              {authRequired: true},
	CmdGetMessages:       {authRequired: true},
	CmdSendMessage:       {authRequired: true},
	CmdEditMessage:       {authRequired: true},
	CmdDeleteMessage:     {authRequired: true},
	CmdDMSend:            {authRequired: true},
	CmdDMEdit:            {authRequired: true},
	CmdDMDelete:          {authRequired: true},
	CmdAddReaction:       {authRequired: true},
	CmdAddDMReaction:     {authRequired: true},
	CmdSubscribeStatus:   {authRequired: true},
	CmdUnsubscribeStatus: {authRequired: true},
	CmdTyping:            {authRequired: true, silent: true},
	CmdStopTyping:        {authRequired: true, silent: true},
	CmdDMTyping:          {authRequired: true, silent: true},
	CmdStopDMTyping:      {authRequired: true, silent: true},
	CmdCallSignaling:     {authRequired: true},
	CmdCallVideoToggle:   {authRequired: true},
	CmdCallScreenToggle:  {authRequired: true},
	CmdGetUpdates:        {authRequired: true},
}

// Inbound data shapes; key names are part of the wire contract.

type sendMessageData struct {
	Content   string `json:"content"`
	ReplyToID *int64 `json:"reply_to_id"`
}

type editMessageData struct {
	MessageID int64  `json:"message_id"`
	Content   string `json:"content"`
}

type deleteMessageData struct {
	MessageID int64 `json:"message_id"`
}

type dmSendData struct {
	RecipientID int64  `json:"recipientId"`
	IV          string `json:"iv"`
	Ciphertext  string `json:"ciphertext"`
	Salt        string `json:"salt"`
	IV2         string `json:"iv2"`
	WrappedMK   string `json:"wrappedMk"`
	ReplyToID   *int64 `json:"replyToId"`
}

type dmEditData struct {
	ID         int64  `json:"id"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	Salt       string `json:"salt"`
	IV2        string `json:"iv2"`
	WrappedMK  string `json:"wrappedMk"`
}

type dmDeleteData struct {
	ID          int64 `json:"id"`
	RecipientID int64 `json:"recipientId"`
}

type addReactionData struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type addDMReactionData struct {
	DMEnvelopeID int64  `json:"dm_envelope_id"`
	Emoji        string `json:"emoji"`
}

type statusTargetData struct {
	UserID int64 `json:"userId"`
}

type dmTypingData struct {
	RecipientID int64 `json:"recipientId"`
}

type callToggleData struct {
	ToUserID int64 `json:"toUserId"`
	Enabled  bool  `json:"enabled"`
}

type getUpdatesData struct {
	LastSeq int64 `json:"lastSeq"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, model.Validation("Invalid data")
	}
	return v, nil
}

// dispatch runs one authenticated command and returns the reply payload.
// Silent commands return nil with no error.
func (h *Handler) dispatch(ctx context.Context, sess *registry.Session, user *model.User, typ string, raw json.RawMessage) (any, error) {
	switch typ {
	case CmdPing:
		return h.chat.Ping(ctx, sess)
	case CmdGetMessages:
		return h.chat.GetMessages(ctx)
	case CmdSendMessage:
		data, err := decode[sendMessageData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.SendMessage(ctx, user, data.Content, data.ReplyToID)
	case CmdEditMessage:
		data, err := decode[editMessageData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.EditMessage(ctx, user, data.MessageID, data.Content)
	case CmdDeleteMessage:
		data, err := decode[deleteMessageData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.DeleteMessage(ctx, user, data.MessageID)
	case CmdDMSend:
		data, err := decode[dmSendData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.DMSend(ctx, user, service.DMSendInput{
			RecipientID: data.RecipientID,
			IV:          data.IV,
			Ciphertext:  data.Ciphertext,
			Salt:        data.Salt,
			IV2:         data.IV2,
			WrappedMK:   data.WrappedMK,
			ReplyToID:   data.ReplyToID,
		})
	case CmdDMEdit:
		data, err := decode[dmEditData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.DMEdit(ctx, user, service.DMEditInput{
			ID:         data.ID,
			IV:         data.IV,
			Ciphertext: data.Ciphertext,
			Salt:       data.Salt,
			IV2:        data.IV2,
			WrappedMK:  data.WrappedMK,
		})
	case CmdDMDelete:
		data, err := decode[dmDeleteData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.DMDelete(ctx, user, data.ID, data.RecipientID)
	case CmdAddReaction:
		data, err := decode[addReactionData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.AddReaction(ctx, user, data.MessageID, data.Emoji)
	case CmdAddDMReaction:
		data, err := decode[addDMReactionData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.AddDMReaction(ctx, user, data.DMEnvelopeID, data.Emoji)
	case CmdSubscribeStatus:
		data, err := decode[statusTargetData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.SubscribeStatus(ctx, sess, data.UserID)
	case CmdUnsubscribeStatus:
		data, err := decode[statusTargetData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.UnsubscribeStatus(sess, data.UserID)
	case CmdTyping:
		h.chat.Typing(user)
		return nil, nil
	case CmdStopTyping:
		h.chat.StopTyping(user)
		return nil, nil
	case CmdDMTyping:
		data, err := decode[dmTypingData](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.chat.DMTyping(user, data.RecipientID)
	case CmdStopDMTyping:
		data, err := decode[dmTypingData](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.chat.StopDMTyping(user, data.RecipientID)
	case CmdCallSignaling:
		data, err := decode[map[string]any](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.CallSignaling(user, data)
	case CmdCallVideoToggle, CmdCallScreenToggle:
		data, err := decode[callToggleData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.CallToggle(user, typ, data.ToUserID, data.Enabled)
	case CmdGetUpdates:
		data, err := decode[getUpdatesData](raw)
		if err != nil {
			return nil, err
		}
		return h.chat.GetUpdates(ctx, sess, data.LastSeq)
	default:
		return nil, model.Validation("Invalid type")
	}
}
