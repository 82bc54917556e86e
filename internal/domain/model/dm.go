package model

import "time"

// DMEnvelope is an end-to-end encrypted direct message. The server stores
// and forwards the envelope fields verbatim and never inspects them.
type DMEnvelope struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	SenderID    int64     `gorm:"index;not null" json:"sender_id"`
	RecipientID int64     `gorm:"index;not null" json:"recipient_id"`
	IV          string    `gorm:"column:iv;type:text;not null" json:"iv"`
	Ciphertext  string    `gorm:"type:text;not null" json:"ciphertext"`
	Salt        string    `gorm:"type:text;not null" json:"salt"`
	IV2         string    `gorm:"column:iv2;type:text;not null" json:"iv2"`
	WrappedMK   string    `gorm:"column:wrapped_mk;type:text;not null" json:"wrapped_mk"`
	Timestamp   time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	ReplyToID   *int64    `json:"reply_to_id"`

	Sender    *User        `gorm:"foreignKey:SenderID" json:"-"`
	Reactions []DMReaction `gorm:"foreignKey:DMEnvelopeID" json:"-"`
	Files     []DMFile     `gorm:"foreignKey:DMEnvelopeID" json:"-"`
}

func (DMEnvelope) TableName() string { return "dm_envelope" }

// DMReaction is one user's emoji on a DM envelope. Reactions reference the
// envelope, not the plaintext.
type DMReaction struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DMEnvelopeID int64  `gorm:"column:dm_envelope_id;uniqueIndex:idx_dm_reaction_once;not null" json:"dm_envelope_id"`
	UserID       int64  `gorm:"uniqueIndex:idx_dm_reaction_once;not null" json:"user_id"`
	Emoji        string `gorm:"uniqueIndex:idx_dm_reaction_once;size:32;not null" json:"emoji"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (DMReaction) TableName() string { return "dm_reaction" }

// DMFile is an encrypted attachment row. The stored blob is opaque; the
// download gate checks the sender/recipient ids encoded in the filename.
type DMFile struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DMEnvelopeID int64  `gorm:"column:dm_envelope_id;index;not null" json:"dm_envelope_id"`
	FilePath     string `gorm:"not null" json:"-"`
	FileName     string `gorm:"not null" json:"name"`
}

func (DMFile) TableName() string { return "dm_file" }
