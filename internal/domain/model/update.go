package model

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Update kinds carried inside sequenced "updates" frames.
const (
	KindNewMessage       = "newMessage"
	KindMessageEdited    = "messageEdited"
	KindMessageDeleted   = "messageDeleted"
	KindDMNew            = "dmNew"
	KindDMEdited         = "dmEdited"
	KindDMDeleted        = "dmDeleted"
	KindReactionUpdate   = "reactionUpdate"
	KindDMReactionUpdate = "dmReactionUpdate"
	KindTyping           = "typing"
	KindStopTyping       = "stopTyping"
	KindDMTyping         = "dmTyping"
	KindStopDMTyping     = "stopDmTyping"
	KindStatusUpdate     = "statusUpdate"
	KindSuspended        = "suspended"
	KindAccountDeleted   = "account_deleted"
	KindCallSignaling    = "call_signaling"
)

// Reaction toggle outcomes.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// Update is one event inside a sequenced batch. The signature collapses
// retransmissions of the same logical event within a session's dedup
// window; it is a dedup key, not a security boundary.
type Update struct {
	Type string `json:"type"`
	Data any    `json:"data"`

	sig string
}

// Signature returns the dedup key computed at construction.
func (u Update) Signature() string { return u.sig }

func digest(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func newUpdate(kind string, data any, keyParts ...string) Update {
	if len(keyParts) == 0 {
		raw, _ := json.Marshal(data)
		return Update{Type: kind, Data: data, sig: digest(kind, string(raw))}
	}
	return Update{Type: kind, Data: data, sig: digest(append([]string{kind}, keyParts...)...)}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// MessageDeletedPayload announces removal of a public message.
type MessageDeletedPayload struct {
	MessageID int64 `json:"message_id"`
}

// DMNewPayload is the envelope shape fanned out on dmSend.
type DMNewPayload struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"senderId"`
	RecipientID int64  `json:"recipientId"`
	IV          string `json:"iv"`
	Ciphertext  string `json:"ciphertext"`
	Salt        string `json:"salt"`
	IV2         string `json:"iv2"`
	WrappedMK   string `json:"wrappedMk"`
	Timestamp   string `json:"timestamp"`
	ReplyToID   *int64 `json:"replyToId"`
}

// DMEditedPayload is the envelope shape fanned out on dmEdit. Edits do not
// carry the reply reference.
type DMEditedPayload struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"senderId"`
	RecipientID int64  `json:"recipientId"`
	IV          string `json:"iv"`
	Ciphertext  string `json:"ciphertext"`
	Salt        string `json:"salt"`
	IV2         string `json:"iv2"`
	WrappedMK   string `json:"wrappedMk"`
	Timestamp   string `json:"timestamp"`
}

// DMDeletedPayload announces removal of an envelope. RecipientID echoes the
// client-supplied value so the recipient's UI can route the event.
type DMDeletedPayload struct {
	ID          int64 `json:"id"`
	SenderID    int64 `json:"senderId"`
	RecipientID int64 `json:"recipientId"`
}

// ReactionUpdatePayload carries a public reaction toggle with the full
// regrouped reaction set.
type ReactionUpdatePayload struct {
	MessageID int64           `json:"message_id"`
	Emoji     string          `json:"emoji"`
	Action    string          `json:"action"`
	UserID    int64           `json:"user_id"`
	Username  string          `json:"username"`
	Reactions []ReactionGroup `json:"reactions"`
}

// DMReactionUpdatePayload carries a DM reaction toggle.
type DMReactionUpdatePayload struct {
	DMEnvelopeID int64           `json:"dm_envelope_id"`
	Emoji        string          `json:"emoji"`
	Action       string          `json:"action"`
	UserID       int64           `json:"user_id"`
	Username     string          `json:"username"`
	Reactions    []ReactionGroup `json:"reactions"`
}

// TypingPayload identifies who is typing.
type TypingPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// StatusPayload is a presence change for a watched user.
type StatusPayload struct {
	UserID   int64   `json:"userId"`
	Online   bool    `json:"online"`
	LastSeen *string `json:"lastSeen"`
}

// SuspendedPayload tells a user their account was suspended.
type SuspendedPayload struct {
	Reason string `json:"reason"`
}

// CallTogglePayload is a sequenced call-state change (camera, screen
// share), delivered under the call_signaling kind.
type CallTogglePayload struct {
	Type       string         `json:"type"`
	FromUserID int64          `json:"fromUserId"`
	ToUserID   int64          `json:"toUserId"`
	Data       CallToggleData `json:"data"`
}

// CallToggleData is the toggle flag itself.
type CallToggleData struct {
	Enabled bool `json:"enabled"`
}

// MessagePosted builds the newMessage update.
func MessagePosted(p MessagePayload) Update {
	return newUpdate(KindNewMessage, p, itoa(p.ID))
}

// MessageEdited builds the messageEdited update.
func MessageEdited(p MessagePayload) Update {
	return newUpdate(KindMessageEdited, p, itoa(p.ID))
}

// MessageDeleted builds the messageDeleted update.
func MessageDeleted(messageID int64) Update {
	return newUpdate(KindMessageDeleted, MessageDeletedPayload{MessageID: messageID}, itoa(messageID))
}

// DMPosted builds the dmNew update.
func DMPosted(p DMNewPayload) Update {
	return newUpdate(KindDMNew, p, itoa(p.ID))
}

// DMEditedUpdate builds the dmEdited update.
func DMEditedUpdate(p DMEditedPayload) Update {
	return newUpdate(KindDMEdited, p, itoa(p.ID))
}

// DMDeletedUpdate builds the dmDeleted update.
func DMDeletedUpdate(p DMDeletedPayload) Update {
	return newUpdate(KindDMDeleted, p, itoa(p.ID))
}

// ReactionChanged builds the reactionUpdate update.
func ReactionChanged(p ReactionUpdatePayload) Update {
	return newUpdate(KindReactionUpdate, p, itoa(p.MessageID), p.Emoji, itoa(p.UserID))
}

// DMReactionChanged builds the dmReactionUpdate update.
func DMReactionChanged(p DMReactionUpdatePayload) Update {
	return newUpdate(KindDMReactionUpdate, p, itoa(p.DMEnvelopeID), p.Emoji, itoa(p.UserID))
}

// TypingStarted builds the typing update.
func TypingStarted(userID int64, username string) Update {
	return newUpdate(KindTyping, TypingPayload{UserID: userID, Username: username}, itoa(userID))
}

// TypingStopped builds the stopTyping update.
func TypingStopped(userID int64, username string) Update {
	return newUpdate(KindStopTyping, TypingPayload{UserID: userID, Username: username}, itoa(userID))
}

// DMTypingStarted builds the dmTyping update.
func DMTypingStarted(userID int64, username string) Update {
	return newUpdate(KindDMTyping, TypingPayload{UserID: userID, Username: username}, itoa(userID))
}

// DMTypingStopped builds the stopDmTyping update.
func DMTypingStopped(userID int64, username string) Update {
	return newUpdate(KindStopDMTyping, TypingPayload{UserID: userID, Username: username}, itoa(userID))
}

// StatusChanged builds the statusUpdate update.
func StatusChanged(userID int64, online bool, lastSeen *time.Time) Update {
	p := StatusPayload{UserID: userID, Online: online, LastSeen: WireTimePtr(lastSeen)}
	return newUpdate(KindStatusUpdate, p, itoa(userID), strconv.FormatBool(online))
}

// AccountSuspended builds the suspended update.
func AccountSuspended(reason string) Update {
	return newUpdate(KindSuspended, SuspendedPayload{Reason: reason})
}

// AccountDeletedUpdate builds the account_deleted update.
func AccountDeletedUpdate() Update {
	return newUpdate(KindAccountDeleted, struct{}{})
}

// CallToggled builds a sequenced call-state update.
func CallToggled(kind string, fromUserID, toUserID int64, enabled bool) Update {
	p := CallTogglePayload{
		Type:       kind,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Data:       CallToggleData{Enabled: enabled},
	}
	return newUpdate(KindCallSignaling, p)
}
