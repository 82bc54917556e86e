package model

import (
	"path/filepath"
	"sort"
	"time"
)

// Wire timestamps are ISO-8601 in UTC.
func WireTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// WireTimePtr renders an optional timestamp, null when absent.
func WireTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := WireTime(*t)
	return &s
}

// ReactionUser identifies one reacting user inside a reaction group.
type ReactionUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ReactionGroup aggregates a message's reactions per emoji.
type ReactionGroup struct {
	Emoji string         `json:"emoji"`
	Count int            `json:"count"`
	Users []ReactionUser `json:"users"`
}

// FilePayload is an attachment reference on a public message.
type FilePayload struct {
	Path      string `json:"path"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	MessageID int64  `json:"message_id"`
}

// DMFilePayload is an attachment reference on a DM envelope.
type DMFilePayload struct {
	Path         string `json:"path"`
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DMEnvelopeID int64  `json:"dm_envelope_id"`
}

// MessagePayload is the public-room message as clients see it.
type MessagePayload struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Content        string          `json:"content"`
	Timestamp      string          `json:"timestamp"`
	IsRead         bool            `json:"is_read"`
	IsEdited       bool            `json:"is_edited"`
	Username       string          `json:"username"`
	ProfilePicture *string         `json:"profile_picture"`
	Verified       bool            `json:"verified"`
	ReplyTo        *MessagePayload `json:"reply_to"`
	Reactions      []ReactionGroup `json:"reactions"`
	Files          []FilePayload   `json:"files"`
}

// DMEnvelopePayload is the stored envelope as served by history fetches.
type DMEnvelopePayload struct {
	ID          int64           `json:"id"`
	SenderID    int64           `json:"senderId"`
	RecipientID int64           `json:"recipientId"`
	IV          string          `json:"iv"`
	Ciphertext  string          `json:"ciphertext"`
	Salt        string          `json:"salt"`
	IV2         string          `json:"iv2"`
	WrappedMK   string          `json:"wrappedMk"`
	Timestamp   string          `json:"timestamp"`
	ReplyToID   *int64          `json:"replyToId"`
	Verified    bool            `json:"verified"`
	Reactions   []ReactionGroup `json:"reactions"`
	Files       []DMFilePayload `json:"files"`
}

// UserPayload is the profile summary shape.
type UserPayload struct {
	ID               int64   `json:"id"`
	CreatedAt        string  `json:"created_at"`
	LastSeen         *string `json:"last_seen"`
	Online           bool    `json:"online"`
	Username         string  `json:"username"`
	DisplayName      string  `json:"display_name"`
	ProfilePicture   *string `json:"profile_picture"`
	Bio              string  `json:"bio"`
	Admin            bool    `json:"admin"`
	Verified         bool    `json:"verified"`
	Suspended        bool    `json:"suspended"`
	SuspensionReason *string `json:"suspension_reason"`
	Deleted          bool    `json:"deleted"`
}

// BuildReactionGroups aggregates preloaded reaction rows per emoji, with
// users in reaction order. Group order follows first appearance.
func BuildReactionGroups(users map[int64]*User, userIDs []int64, emojis []string) []ReactionGroup {
	groups := make([]ReactionGroup, 0)
	index := make(map[string]int)
	for i, emoji := range emojis {
		gi, ok := index[emoji]
		if !ok {
			gi = len(groups)
			index[emoji] = gi
			groups = append(groups, ReactionGroup{Emoji: emoji})
		}
		name := "Unknown"
		if u, ok := users[userIDs[i]]; ok {
			name = u.PublicName()
		}
		groups[gi].Count++
		groups[gi].Users = append(groups[gi].Users, ReactionUser{ID: userIDs[i], Username: name})
	}
	return groups
}

func reactionGroupsFor(reactions []Reaction) []ReactionGroup {
	users := make(map[int64]*User, len(reactions))
	ids := make([]int64, len(reactions))
	emojis := make([]string, len(reactions))
	for i, r := range reactions {
		ids[i] = r.UserID
		emojis[i] = r.Emoji
		if r.User != nil {
			users[r.UserID] = r.User
		}
	}
	return BuildReactionGroups(users, ids, emojis)
}

func dmReactionGroupsFor(reactions []DMReaction) []ReactionGroup {
	users := make(map[int64]*User, len(reactions))
	ids := make([]int64, len(reactions))
	emojis := make([]string, len(reactions))
	for i, r := range reactions {
		ids[i] = r.UserID
		emojis[i] = r.Emoji
		if r.User != nil {
			users[r.UserID] = r.User
		}
	}
	return BuildReactionGroups(users, ids, emojis)
}

// BuildMessagePayload renders a message with preloaded Author, ReplyTo,
// Reactions (with users) and Files. Hidden authors are masked.
func BuildMessagePayload(m *Message) MessagePayload {
	p := MessagePayload{
		ID:        m.ID,
		UserID:    m.UserID,
		Content:   m.Content,
		Timestamp: WireTime(m.Timestamp),
		IsRead:    m.IsRead,
		IsEdited:  m.IsEdited,
		Username:  "Unknown",
		Reactions: reactionGroupsFor(m.Reactions),
		Files:     make([]FilePayload, 0, len(m.Files)),
	}
	if m.Author != nil {
		p.Username = m.Author.PublicName()
		if !m.Author.Hidden() {
			p.ProfilePicture = m.Author.ProfilePicture
			p.Verified = m.Author.Verified
		}
	}
	if m.ReplyTo != nil {
		reply := BuildMessagePayload(m.ReplyTo)
		p.ReplyTo = &reply
	}
	for _, f := range m.Files {
		p.Files = append(p.Files, FilePayload{
			Path:      "/api/uploads/files/normal/" + filepath.Base(f.FilePath),
			ID:        f.ID,
			Name:      f.FileName,
			MessageID: f.MessageID,
		})
	}
	return p
}

// BuildDMEnvelopePayload renders a stored envelope with preloaded Sender,
// Reactions and Files.
func BuildDMEnvelopePayload(e *DMEnvelope) DMEnvelopePayload {
	p := DMEnvelopePayload{
		ID:          e.ID,
		SenderID:    e.SenderID,
		RecipientID: e.RecipientID,
		IV:          e.IV,
		Ciphertext:  e.Ciphertext,
		Salt:        e.Salt,
		IV2:         e.IV2,
		WrappedMK:   e.WrappedMK,
		Timestamp:   WireTime(e.Timestamp),
		ReplyToID:   e.ReplyToID,
		Reactions:   dmReactionGroupsFor(e.Reactions),
		Files:       make([]DMFilePayload, 0, len(e.Files)),
	}
	if e.Sender != nil && !e.Sender.Hidden() {
		p.Verified = e.Sender.Verified
	}
	for _, f := range e.Files {
		p.Files = append(p.Files, DMFilePayload{
			Path:         "/api/uploads/files/encrypted/" + filepath.Base(f.FilePath),
			ID:           f.ID,
			Name:         f.FileName,
			DMEnvelopeID: f.DMEnvelopeID,
		})
	}
	return p
}

// BuildUserPayload renders a profile summary. Hidden accounts read as
// deleted to other users.
func BuildUserPayload(u *User) UserPayload {
	return UserPayload{
		ID:               u.ID,
		CreatedAt:        WireTime(u.CreatedAt),
		LastSeen:         WireTimePtr(u.LastSeen),
		Online:           u.Online,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		ProfilePicture:   u.ProfilePicture,
		Bio:              u.Bio,
		Admin:            u.IsOwner(),
		Verified:         u.Verified,
		Suspended:        u.Suspended,
		SuspensionReason: u.SuspensionReason,
		Deleted:          u.Deleted || u.Suspended,
	}
}

// SortUserPayloads orders profile summaries by id for stable listings.
func SortUserPayloads(list []UserPayload) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
