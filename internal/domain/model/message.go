package model

import "time"

// Message is a post in the public room. Content is stored HTML-escaped.
type Message struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	IsEdited  bool      `gorm:"default:false" json:"is_edited"`
	ReplyToID *int64    `json:"reply_to_id"`

	Author    *User         `gorm:"foreignKey:UserID" json:"-"`
	ReplyTo   *Message      `gorm:"foreignKey:ReplyToID" json:"-"`
	Reactions []Reaction    `gorm:"foreignKey:MessageID" json:"-"`
	Files     []MessageFile `gorm:"foreignKey:MessageID" json:"-"`
}

func (Message) TableName() string { return "message" }

// Reaction is one user's emoji on a public message. The unique index makes
// the toggle race-safe.
type Reaction struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	MessageID int64  `gorm:"uniqueIndex:idx_reaction_once;not null" json:"message_id"`
	UserID    int64  `gorm:"uniqueIndex:idx_reaction_once;not null" json:"user_id"`
	Emoji     string `gorm:"uniqueIndex:idx_reaction_once;size:32;not null" json:"emoji"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Reaction) TableName() string { return "reaction" }

// MessageFile is an attachment row for a public message. Only the basename
// of FilePath is ever exposed to clients.
type MessageFile struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	MessageID int64  `gorm:"index;not null" json:"message_id"`
	FilePath  string `gorm:"not null" json:"-"`
	FileName  string `gorm:"not null" json:"name"`
}

func (MessageFile) TableName() string { return "message_file" }
