package audit

import (
	"fmt"
	"html"
	"strings"

	"github.com/fromchat/chat-core-service/internal/domain/model"
)

// Match types reported with automatic suspensions.
const (
	MatchBurst         = "burst"
	MatchShortRepeat   = "short_repeat"
	MatchSimilarRepeat = "similar_repeat"
)

func userRef(u *model.User) string {
	return fmt.Sprintf("@%s (user id %d)", u.Username, u.ID)
}

// contentLines renders stored (HTML-escaped) content verbatim for the
// log, one content line per source line.
func contentLines(content string) []string {
	return strings.Split(html.UnescapeString(content), "\n")
}

// --- security stream ---

func (s *Sink) LoginSuccess(u *model.User, sess *model.DeviceSession, ip string) {
	s.security.write(entry{
		headline: "Login success for " + userRef(u),
		details: []string{
			"client: " + sess.ClientLabel(),
			"session: " + sess.SessionID,
			"ip: " + ip,
		},
	})
}

func (s *Sink) LoginFailed(username, ip, reason string) {
	s.security.write(entry{
		headline: fmt.Sprintf("Login failed for username %q", username),
		details: []string{
			"reason: " + reason,
			"ip: " + ip,
		},
	})
}

func (s *Sink) RegistrationSuccess(u *model.User, ip string) {
	s.security.write(entry{
		headline: "Registration success for " + userRef(u),
		details:  []string{"ip: " + ip},
	})
}

func (s *Sink) PasswordChanged(u *model.User) {
	s.security.write(entry{headline: "Password changed for " + userRef(u)})
}

func (s *Sink) Logout(u *model.User, sessionID string) {
	s.security.write(entry{
		headline: "Logout for " + userRef(u),
		details:  []string{"session: " + sessionID},
	})
}

// PublicMessageBurst is the pre-suspension warning, logged at most once
// per window by the spam monitor.
func (s *Sink) PublicMessageBurst(u *model.User, count int) {
	s.security.write(entry{
		headline: "Public message burst from " + userRef(u),
		details:  []string{fmt.Sprintf("messages in window: %d", count)},
	})
}

func (s *Sink) AutoSuspension(u *model.User, matchType, reason string, deleted int, samples []string) {
	e := entry{
		headline: "Automatic suspension triggered for " + userRef(u),
		details: []string{
			"match: " + matchType,
			"reason: " + reason,
			fmt.Sprintf("messages deleted: %d", deleted),
		},
	}
	for _, sample := range samples {
		e.content = append(e.content, contentLines(sample)...)
	}
	s.security.write(e)
}

func (s *Sink) AdminSuspend(actor, target *model.User, reason string) {
	s.security.write(entry{
		headline: "Admin suspension of " + userRef(target),
		details: []string{
			"by: " + userRef(actor),
			"reason: " + reason,
		},
	})
}

func (s *Sink) AdminUnsuspend(actor, target *model.User) {
	s.security.write(entry{
		headline: "Admin unsuspension of " + userRef(target),
		details:  []string{"by: " + userRef(actor)},
	})
}

func (s *Sink) AdminDeleteUser(actor, target *model.User) {
	s.security.write(entry{
		headline: "Admin deletion of " + userRef(target),
		details:  []string{"by: " + userRef(actor)},
	})
}

func (s *Sink) AdminVerifyToggle(actor, target *model.User, verified bool) {
	state := "removed from"
	if verified {
		state = "granted to"
	}
	s.security.write(entry{
		headline: fmt.Sprintf("Verification %s %s", state, userRef(target)),
		details:  []string{"by: " + userRef(actor)},
	})
}

func (s *Sink) BlocklistAdd(actor *model.User, words []string) {
	s.security.write(entry{
		headline: "Blocklist entries added by " + userRef(actor),
		details:  []string{"terms: " + strings.Join(words, ", ")},
	})
}

func (s *Sink) BlocklistRemove(actor *model.User, words []string) {
	s.security.write(entry{
		headline: "Blocklist entries removed by " + userRef(actor),
		details:  []string{"terms: " + strings.Join(words, ", ")},
	})
}

// --- public chat stream ---

func (s *Sink) MessageCreated(u *model.User, messageID int64, content string) {
	s.publicChat.write(entry{
		headline: fmt.Sprintf("Message %d created by %s", messageID, userRef(u)),
		content:  contentLines(content),
	})
}

func (s *Sink) MessageEdited(u *model.User, messageID int64, oldContent, newContent string) {
	e := entry{
		headline: fmt.Sprintf("Message %d edited by %s", messageID, userRef(u)),
		details:  []string{"was:"},
		content:  contentLines(oldContent),
	}
	e.details = append(e.details, "now:")
	e.content = append(e.content, contentLines(newContent)...)
	s.publicChat.write(e)
}

func (s *Sink) MessageDeleted(actor *model.User, authorName string, messageID int64, content string) {
	s.publicChat.write(entry{
		headline: fmt.Sprintf("Message %d by %s deleted by %s", messageID, authorName, userRef(actor)),
		content:  contentLines(content),
	})
}

func (s *Sink) ReactionUpdate(u *model.User, messageID int64, emoji, action string) {
	s.publicChat.write(entry{
		headline: fmt.Sprintf("Reaction %s %s on message %d by %s", emoji, action, messageID, userRef(u)),
	})
}

// --- dm stream (metadata only, never content) ---

func (s *Sink) DMCreated(sender *model.User, recipientID, envelopeID int64) {
	s.dm.write(entry{
		headline: fmt.Sprintf("Envelope %d created by %s for user id %d", envelopeID, userRef(sender), recipientID),
	})
}

func (s *Sink) DMEdited(sender *model.User, envelopeID int64) {
	s.dm.write(entry{
		headline: fmt.Sprintf("Envelope %d edited by %s", envelopeID, userRef(sender)),
	})
}

func (s *Sink) DMDeleted(sender *model.User, envelopeID int64) {
	s.dm.write(entry{
		headline: fmt.Sprintf("Envelope %d deleted by %s", envelopeID, userRef(sender)),
	})
}

func (s *Sink) DMReactionUpdate(u *model.User, envelopeID int64, emoji, action string) {
	s.dm.write(entry{
		headline: fmt.Sprintf("Reaction %s %s on envelope %d by %s", emoji, action, envelopeID, userRef(u)),
	})
}

// --- access stream ---

func (s *Sink) HTTPRequest(method, path string, status int, username, ip string) {
	who := "anonymous"
	if username != "" {
		who = "@" + username
	}
	s.access.write(entry{
		headline: fmt.Sprintf("%s %s -> %d (%s, ip %s)", method, path, status, who, ip),
	})
}

func (s *Sink) WSConnect(connID, ip string) {
	s.access.write(entry{
		headline: "WS connect " + connID,
		details:  []string{"ip: " + ip},
	})
}

func (s *Sink) WSDisconnect(connID string, code int) {
	s.access.write(entry{
		headline: fmt.Sprintf("WS disconnect %s (close code %d)", connID, code),
	})
}

func (s *Sink) WSEvent(username, connID, eventType string) {
	who := "anonymous"
	if username != "" {
		who = "@" + username
	}
	s.access.write(entry{
		headline: fmt.Sprintf("WS event %s from %s on %s", eventType, who, connID),
	})
}
