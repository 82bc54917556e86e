package model

import "time"

// CryptoPublicKey is a user's published DM public key (JWK JSON). One row
// per user; re-publishing replaces it.
type CryptoPublicKey struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	PublicKey string    `gorm:"type:text;not null" json:"public_key"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CryptoPublicKey) TableName() string { return "crypto_public_key" }

// CryptoBackup is a client-side encrypted key backup. The server cannot
// read it; IV and Salt are the client's KDF parameters.
type CryptoBackup struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Ciphertext string    `gorm:"type:text;not null" json:"ciphertext"`
	IV         string    `gorm:"column:iv;type:text;not null" json:"iv"`
	Salt       string    `gorm:"type:text;not null" json:"salt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CryptoBackup) TableName() string { return "crypto_backup" }
