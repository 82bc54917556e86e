package model

import "time"

// UpdateLog is one flushed update batch, keyed by the per-user sequence.
// Updates holds the JSON array exactly as it was framed to the client, so
// replay can splice it back without re-marshalling.
type UpdateLog struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_update_log_user_seq;not null" json:"user_id"`
	Sequence  int64     `gorm:"uniqueIndex:idx_update_log_user_seq;not null" json:"sequence"`
	Updates   string    `gorm:"type:text;not null" json:"updates"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (UpdateLog) TableName() string { return "update_log" }
