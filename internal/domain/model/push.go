package model

import "time"

// PushSubscription is a Web Push endpoint. One row per user; subscribing
// again replaces the previous endpoint.
type PushSubscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256dhKey string    `gorm:"column:p256dh_key;type:text;not null" json:"p256dh_key"`
	AuthKey   string    `gorm:"type:text;not null" json:"auth_key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PushSubscription) TableName() string { return "push_subscription" }

// FcmToken is a mobile push registration token. Users may hold several,
// one per installed device.
type FcmToken struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;type:text;not null" json:"token"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FcmToken) TableName() string { return "fcm_token" }
