package model

import (
	"fmt"
	"time"
)

// OwnerUserID is the account with moderation rights. The first registered
// user gets this id and cannot be suspended or deleted.
const OwnerUserID int64 = 1

// User is a chat account. Suspended and deleted users keep their rows so
// that history stays renderable; payload builders mask their identity.
type User struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	Username         string     `gorm:"uniqueIndex;not null;size:64" json:"username"`
	DisplayName      string     `gorm:"size:64" json:"display_name"`
	PasswordHash     string     `gorm:"not null" json:"-"`
	ProfilePicture   *string    `json:"profile_picture"`
	Bio              string     `gorm:"size:512" json:"bio"`
	Verified         bool       `gorm:"default:false" json:"verified"`
	Suspended        bool       `gorm:"default:false" json:"suspended"`
	SuspensionReason *string    `json:"suspension_reason"`
	Deleted          bool       `gorm:"default:false" json:"deleted"`
	Online           bool       `gorm:"default:false" json:"online"`
	LastSeen         *time.Time `json:"last_seen"`
}

func (User) TableName() string { return "users" }

// IsOwner reports whether the user holds the owner account.
func (u *User) IsOwner() bool { return u.ID == OwnerUserID }

// Hidden reports whether the user's identity must be masked in payloads.
func (u *User) Hidden() bool { return u.Deleted || u.Suspended }

// PublicName is the name rendered in message payloads: the display name,
// the username when no display name is set, or the deletion placeholder
// when the account is hidden.
func (u *User) PublicName() string {
	if u.Hidden() {
		return fmt.Sprintf("Deleted User #%d", u.ID)
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
