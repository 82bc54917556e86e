package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/domain/registry"
	"github.com/fromchat/chat-core-service/internal/notify"
	"github.com/fromchat/chat-core-service/internal/presence"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/sequence"
	"github.com/fromchat/chat-core-service/internal/spam"
	"github.com/fromchat/chat-core-service/internal/store"
)

const (
	maxContentLength = 4096
	maxEmojiRunes    = 32
)

// Stored content is HTML-escaped without touching quotes.
var contentEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Chat implements every room and DM command behind the WS dispatcher and
// the history REST endpoints.
type Chat struct {
	store    *store.Store
	hub      *registry.Hub
	seq      *sequence.Sequencer
	presence *presence.Engine
	spam     *spam.Monitor
	filter   *profanity.Filter
	notifier notify.Notifier
	sink     *audit.Sink
	logger   *slog.Logger
}

func NewChat(
	st *store.Store,
	hub *registry.Hub,
	seq *sequence.Sequencer,
	pres *presence.Engine,
	monitor *spam.Monitor,
	filter *profanity.Filter,
	notifier notify.Notifier,
	sink *audit.Sink,
	logger *slog.Logger,
) *Chat {
	return &Chat{
		store:    st,
		hub:      hub,
		seq:      seq,
		presence: pres,
		spam:     monitor,
		filter:   filter,
		notifier: notifier,
		sink:     sink,
		logger:   logger,
	}
}

// Reply shapes. Room commands answer status "success", DM, call and
// subscription commands answer status "ok".

type successResult struct {
	Status string `json:"status"`
}

type okResult struct {
	Status string `json:"status"`
}

func success() successResult { return successResult{Status: "success"} }
func ok() okResult           { return okResult{Status: "ok"} }

type messagesResult struct {
	Status   string                 `json:"status"`
	Messages []model.MessagePayload `json:"messages"`
}

type messageResult struct {
	Status  string               `json:"status"`
	Message model.MessagePayload `json:"message"`
}

type messageIDResult struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id"`
}

type envelopeResult struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

type reactionResult struct {
	Status    string                `json:"status"`
	Action    string                `json:"action"`
	Reactions []model.ReactionGroup `json:"reactions"`
}

type updatesResult struct {
	Status      string `json:"status"`
	LastSeq     int64  `json:"lastSeq"`
	MissedCount int    `json:"missedCount"`
}

// Ping marks the user online and tells their status watchers.
func (c *Chat) Ping(ctx context.Context, sess *registry.Session) (any, error) {
	userID := sess.UserID()
	now := time.Now().UTC()
	if err := c.store.SetUserOnline(ctx, userID, true, now); err != nil {
		return nil, err
	}
	c.hub.NotifyWatchers(userID, model.StatusChanged(userID, true, &now))
	return success(), nil
}

// GetMessages returns the whole public room, oldest first.
func (c *Chat) GetMessages(ctx context.Context) (any, error) {
	payloads, err := c.PublicHistory(ctx)
	if err != nil {
		return nil, err
	}
	return messagesResult{Status: "success", Messages: payloads}, nil
}

// validateContent runs the public content pipeline and returns the
// escaped text ready for storage.
func (c *Chat) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", model.Validation("Message cannot be empty")
	}
	if c.filter.Contains(content) {
		return "", model.ContentPolicy("Message contains blocked language")
	}
	escaped := contentEscaper.Replace(content)
	if len(escaped) > maxContentLength {
		return "", model.Validation("Message is too long")
	}
	return escaped, nil
}

// SendMessage posts to the public room. The spam rules run after the
// insert; a tripped rule suspends the author, retracts the burst and the
// message is never broadcast.
func (c *Chat) SendMessage(ctx context.Context, user *model.User, content string, replyToID *int64) (any, error) {
	escaped, err := c.validateContent(content)
	if err != nil {
		return nil, err
	}
	if replyToID != nil {
		exists, err := c.store.MessageExists(ctx, *replyToID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, model.NotFound("Reply target not found")
		}
	}

	msg, err := c.store.CreateMessage(ctx, user.ID, escaped, replyToID)
	if err != nil {
		return nil, err
	}
	c.sink.MessageCreated(user, msg.ID, msg.Content)

	suspended, err := c.spam.Observe(ctx, user, msg.Content, msg.ID)
	if err != nil {
		c.logger.Error("spam observation failed", "user_id", user.ID, "error", err)
	}
	if suspended {
		return nil, model.Forbidden(c.suspensionReason(ctx, user.ID))
	}

	payload := model.BuildMessagePayload(msg)
	c.hub.Broadcast(model.MessagePosted(payload))
	c.notifier.PublicMessagePosted(ctx, msg.ID, user.ID)
	return messageResult{Status: "success", Message: payload}, nil
}

func (c *Chat) suspensionReason(ctx context.Context, userID int64) string {
	if u, err := c.store.GetUser(ctx, userID); err == nil &&
		u.SuspensionReason != nil && *u.SuspensionReason != "" {
		return *u.SuspensionReason
	}
	return "Account suspended"
}

// EditMessage replaces the content of the caller's own message.
func (c *Chat) EditMessage(ctx context.Context, user *model.User, messageID int64, content string) (any, error) {
	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, model.NotFound("Message not found")
	}
	if msg.UserID != user.ID {
		return nil, model.Forbidden("You can only edit your own messages")
	}
	escaped, err := c.validateContent(content)
	if err != nil {
		return nil, err
	}
	old := msg.Content
	updated, err := c.store.UpdateMessageContent(ctx, messageID, escaped)
	if err != nil {
		return nil, err
	}
	c.sink.MessageEdited(user, messageID, old, updated.Content)

	payload := model.BuildMessagePayload(updated)
	c.hub.Broadcast(model.MessageEdited(payload))
	return messageResult{Status: "success", Message: payload}, nil
}

// DeleteMessage removes a message. Authors delete their own; the owner
// deletes anything.
func (c *Chat) DeleteMessage(ctx context.Context, user *model.User, messageID int64) (any, error) {
	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, model.NotFound("Message not found")
	}
	if msg.UserID != user.ID && !user.IsOwner() {
		return nil, model.Forbidden("You can only delete your own messages")
	}
	if err := c.store.DeleteMessage(ctx, messageID); err != nil {
		return nil, err
	}
	authorName := "Unknown"
	if msg.Author != nil {
		authorName = msg.Author.PublicName()
	}
	c.sink.MessageDeleted(user, authorName, messageID, msg.Content)
	c.hub.Broadcast(model.MessageDeleted(messageID))
	return messageIDResult{Status: "success", MessageID: messageID}, nil
}

// DMSendInput carries the opaque envelope fields of a dmSend command.
type DMSendInput struct {
	RecipientID int64
	IV          string
	Ciphertext  string
	Salt        string
	IV2         string
	WrappedMK   string
	ReplyToID   *int64
}

func (in *DMSendInput) complete() bool {
	return in.IV != "" && in.Ciphertext != "" && in.Salt != "" && in.IV2 != "" && in.WrappedMK != ""
}

// DMSend stores an encrypted envelope verbatim and fans the dmNew update
// out to both parties. The server never inspects the ciphertext.
func (c *Chat) DMSend(ctx context.Context, sender *model.User, in DMSendInput) (any, error) {
	if in.RecipientID <= 0 {
		return nil, model.Validation("Recipient is required")
	}
	if in.RecipientID == sender.ID {
		return nil, model.Validation("Cannot send DM to yourself")
	}
	if !in.complete() {
		return nil, model.Validation("Incomplete envelope")
	}
	recipient, err := c.store.GetUser(ctx, in.RecipientID)
	if err != nil || recipient.Deleted || recipient.Suspended {
		return nil, model.NotFound("Recipient not found")
	}

	env := &model.DMEnvelope{
		SenderID:    sender.ID,
		RecipientID: in.RecipientID,
		IV:          in.IV,
		Ciphertext:  in.Ciphertext,
		Salt:        in.Salt,
		IV2:         in.IV2,
		WrappedMK:   in.WrappedMK,
		ReplyToID:   in.ReplyToID,
	}
	if err := c.store.CreateDMEnvelope(ctx, env); err != nil {
		return nil, err
	}
	c.sink.DMCreated(sender, in.RecipientID, env.ID)

	update := model.DMPosted(model.DMNewPayload{
		ID:          env.ID,
		SenderID:    env.SenderID,
		RecipientID: env.RecipientID,
		IV:          env.IV,
		Ciphertext:  env.Ciphertext,
		Salt:        env.Salt,
		IV2:         env.IV2,
		WrappedMK:   env.WrappedMK,
		Timestamp:   model.WireTime(env.Timestamp),
		ReplyToID:   env.ReplyToID,
	})
	c.hub.ToUser(sender.ID, update)
	c.hub.ToUser(env.RecipientID, update)
	c.notifier.DMPosted(ctx, env.ID, sender.ID)
	return envelopeResult{Status: "ok", ID: env.ID}, nil
}

// DMEditInput carries the replacement envelope fields of a dmEdit command.
type DMEditInput struct {
	ID         int64
	IV         string
	Ciphertext string
	Salt       string
	IV2        string
	WrappedMK  string
}

// DMEdit replaces an envelope's ciphertext. Sender-only; the original
// timestamp is kept.
func (c *Chat) DMEdit(ctx context.Context, sender *model.User, in DMEditInput) (any, error) {
	env, err := c.store.GetDMEnvelope(ctx, in.ID)
	if err != nil {
		return nil, model.NotFound("Message not found")
	}
	if env.SenderID != sender.ID {
		return nil, model.Forbidden("You can only edit your own messages")
	}
	if in.IV == "" || in.Ciphertext == "" || in.Salt == "" || in.IV2 == "" || in.WrappedMK == "" {
		return nil, model.Validation("Incomplete envelope")
	}
	updated, err := c.store.UpdateDMEnvelope(ctx, in.ID, in.IV, in.Ciphertext, in.Salt, in.IV2, in.WrappedMK)
	if err != nil {
		return nil, err
	}
	c.sink.DMEdited(sender, in.ID)

	update := model.DMEditedUpdate(model.DMEditedPayload{
		ID:          updated.ID,
		SenderID:    updated.SenderID,
		RecipientID: updated.RecipientID,
		IV:          updated.IV,
		Ciphertext:  updated.Ciphertext,
		Salt:        updated.Salt,
		IV2:         updated.IV2,
		WrappedMK:   updated.WrappedMK,
		Timestamp:   model.WireTime(updated.Timestamp),
	})
	c.hub.ToUser(updated.SenderID, update)
	c.hub.ToUser(updated.RecipientID, update)
	return envelopeResult{Status: "ok", ID: updated.ID}, nil
}

// DMDelete removes an envelope. Sender-only. The recipientId in the
// fan-out echoes the client-supplied value when present.
func (c *Chat) DMDelete(ctx context.Context, sender *model.User, id, recipientID int64) (any, error) {
	env, err := c.store.GetDMEnvelope(ctx, id)
	if err != nil {
		return nil, model.NotFound("Message not found")
	}
	if env.SenderID != sender.ID {
		return nil, model.Forbidden("You can only delete your own messages")
	}
	if err := c.store.DeleteDMEnvelope(ctx, id); err != nil {
		return nil, err
	}
	c.sink.DMDeleted(sender, id)

	echo := recipientID
	if echo == 0 {
		echo = env.RecipientID
	}
	update := model.DMDeletedUpdate(model.DMDeletedPayload{
		ID:          id,
		SenderID:    env.SenderID,
		RecipientID: echo,
	})
	c.hub.ToUser(env.SenderID, update)
	c.hub.ToUser(env.RecipientID, update)
	return envelopeResult{Status: "ok", ID: id}, nil
}

func validateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", model.Validation("Emoji is required")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return "", model.Validation("Invalid emoji")
	}
	return emoji, nil
}

// AddReaction toggles the caller's emoji on a public message and
// broadcasts the regrouped set.
func (c *Chat) AddReaction(ctx context.Context, user *model.User, messageID int64, emoji string) (any, error) {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return nil, err
	}
	exists, err := c.store.MessageExists(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.NotFound("Message not found")
	}
	action, err := c.store.ToggleReaction(ctx, messageID, user.ID, emoji)
	if err != nil {
		return nil, err
	}
	reactions, err := c.store.ListMessageReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}
	groups := groupReactions(reactions)
	c.sink.ReactionUpdate(user, messageID, emoji, action)
	c.hub.Broadcast(model.ReactionChanged(model.ReactionUpdatePayload{
		MessageID: messageID,
		Emoji:     emoji,
		Action:    action,
		UserID:    user.ID,
		Username:  user.PublicName(),
		Reactions: groups,
	}))
	return reactionResult{Status: "success", Action: action, Reactions: groups}, nil
}

// AddDMReaction toggles the caller's emoji on an envelope. Only the two
// conversation participants may react.
func (c *Chat) AddDMReaction(ctx context.Context, user *model.User, envelopeID int64, emoji string) (any, error) {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return nil, err
	}
	env, err := c.store.GetDMEnvelope(ctx, envelopeID)
	if err != nil {
		return nil, model.NotFound("Message not found")
	}
	if user.ID != env.SenderID && user.ID != env.RecipientID {
		return nil, model.Forbidden("Only conversation participants can react")
	}
	action, err := c.store.ToggleDMReaction(ctx, envelopeID, user.ID, emoji)
	if err != nil {
		return nil, err
	}
	reactions, err := c.store.ListDMReactions(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	groups := groupDMReactions(reactions)
	c.sink.DMReactionUpdate(user, envelopeID, emoji, action)
	update := model.DMReactionChanged(model.DMReactionUpdatePayload{
		DMEnvelopeID: envelopeID,
		Emoji:        emoji,
		Action:       action,
		UserID:       user.ID,
		Username:     user.PublicName(),
		Reactions:    groups,
	})
	c.hub.ToUser(env.SenderID, update)
	c.hub.ToUser(env.RecipientID, update)
	return reactionResult{Status: "success", Action: action, Reactions: groups}, nil
}

func groupReactions(reactions []model.Reaction) []model.ReactionGroup {
	users := make(map[int64]*model.User, len(reactions))
	ids := make([]int64, len(reactions))
	emojis := make([]string, len(reactions))
	for i, r := range reactions {
		ids[i] = r.UserID
		emojis[i] = r.Emoji
		if r.User != nil {
			users[r.UserID] = r.User
		}
	}
	return model.BuildReactionGroups(users, ids, emojis)
}

func groupDMReactions(reactions []model.DMReaction) []model.ReactionGroup {
	users := make(map[int64]*model.User, len(reactions))
	ids := make([]int64, len(reactions))
	emojis := make([]string, len(reactions))
	for i, r := range reactions {
		ids[i] = r.UserID
		emojis[i] = r.Emoji
		if r.User != nil {
			users[r.UserID] = r.User
		}
	}
	return model.BuildReactionGroups(users, ids, emojis)
}

// SubscribeStatus watches a user's presence. The current status is pushed
// immediately, outside the batching path.
func (c *Chat) SubscribeStatus(ctx context.Context, sess *registry.Session, userID int64) (any, error) {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, model.NotFound("User not found")
	}
	c.hub.SubscribeStatus(sess, userID)
	payload := model.StatusPayload{
		UserID:   userID,
		Online:   c.hub.IsOnline(userID),
		LastSeen: model.WireTimePtr(user.LastSeen),
	}
	c.hub.DirectSend(sess, registry.DataFrame(model.KindStatusUpdate, payload))
	return ok(), nil
}

// UnsubscribeStatus drops the watch.
func (c *Chat) UnsubscribeStatus(sess *registry.Session, userID int64) (any, error) {
	c.hub.UnsubscribeStatus(sess, userID)
	return ok(), nil
}

// Typing commands are edge-triggered through the presence engine and send
// no reply.

func (c *Chat) Typing(user *model.User) {
	c.presence.Typing(user.ID, user.PublicName())
}

func (c *Chat) StopTyping(user *model.User) {
	c.presence.StopTyping(user.ID, user.PublicName())
}

func (c *Chat) DMTyping(user *model.User, recipientID int64) error {
	if recipientID <= 0 {
		return model.Validation("Recipient is required")
	}
	c.presence.DMTyping(user.ID, user.PublicName(), recipientID)
	return nil
}

func (c *Chat) StopDMTyping(user *model.User, recipientID int64) error {
	if recipientID <= 0 {
		return model.Validation("Recipient is required")
	}
	c.presence.StopDMTyping(user.ID, user.PublicName(), recipientID)
	return nil
}

// CallSignaling forwards an opaque signaling payload to the target user's
// sessions, bypassing batching. The sender identity is stamped on.
func (c *Chat) CallSignaling(user *model.User, data map[string]any) (any, error) {
	target, err := numberField(data, "toUserId")
	if err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["fromUserId"] = user.ID
	payload["fromUsername"] = user.Username
	c.hub.DirectSendToUser(target, registry.DataFrame(model.KindCallSignaling, payload))
	return ok(), nil
}

// CallToggle delivers a camera or screen-share state change as a
// sequenced update so a reconnecting callee can recover it.
func (c *Chat) CallToggle(user *model.User, kind string, toUserID int64, enabled bool) (any, error) {
	if toUserID <= 0 {
		return nil, model.Validation("Missing toUserId")
	}
	c.hub.ToUser(toUserID, model.CallToggled(kind, user.ID, toUserID, enabled))
	return ok(), nil
}

func numberField(data map[string]any, key string) (int64, error) {
	v, okv := data[key]
	if !okv {
		return 0, model.Validation("Missing " + key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, model.Validation("Invalid " + key)
		}
		return i, nil
	default:
		return 0, model.Validation("Invalid " + key)
	}
}

// GetUpdates replays every logged batch after the client's lastSeq, each
// as its own updates frame, then reports the recovery summary.
func (c *Chat) GetUpdates(ctx context.Context, sess *registry.Session, lastSeq int64) (any, error) {
	if lastSeq < 0 {
		return nil, model.Validation("Invalid lastSeq")
	}
	userID := sess.UserID()
	current := c.seq.Current(userID)
	rows, err := c.store.ListUpdateLog(ctx, userID, lastSeq, current)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		c.hub.DirectSend(sess, registry.UpdatesFrame(row.Sequence, json.RawMessage(row.Updates)))
	}
	sess.SetLastAckSeq(current)
	return updatesResult{Status: "ok", LastSeq: current, MissedCount: len(rows)}, nil
}

// ClearRateLimit forgives a user's spam windows. Owner-gated at the HTTP
// edge.
func (c *Chat) ClearRateLimit(ctx context.Context, actor *model.User, targetID int64) error {
	if _, err := c.store.GetUser(ctx, targetID); err != nil {
		return model.NotFound("User not found")
	}
	c.spam.Forget(targetID)
	c.logger.Info("rate limit cleared", "target_id", targetID, "actor_id", actor.ID)
	return nil
}

// History surfaces for the REST edge.

// PublicHistory returns the room messages as payloads.
func (c *Chat) PublicHistory(ctx context.Context) ([]model.MessagePayload, error) {
	msgs, err := c.store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	payloads := make([]model.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, model.BuildMessagePayload(m))
	}
	return payloads, nil
}

// DMHistory returns both directions of the caller's conversation with the
// peer, oldest first.
func (c *Chat) DMHistory(ctx context.Context, userID, peerID int64) ([]model.DMEnvelopePayload, error) {
	if userID == peerID {
		return nil, model.Validation("Cannot get history with yourself")
	}
	peer, err := c.store.GetUser(ctx, peerID)
	if err != nil || peer.Deleted || peer.Suspended {
		return nil, model.NotFound("User not found")
	}
	envs, err := c.store.ListDMsBetween(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	payloads := make([]model.DMEnvelopePayload, 0, len(envs))
	for _, env := range envs {
		payloads = append(payloads, model.BuildDMEnvelopePayload(env))
	}
	return payloads, nil
}

// DMConversations lists the caller's peers, most recent first.
func (c *Chat) DMConversations(ctx context.Context, userID int64) ([]store.DMPeer, error) {
	return c.store.ListDMPeers(ctx, userID)
}
