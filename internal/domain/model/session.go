package model

import "time"

// Device type buckets as reported by user-agent parsing.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// DeviceSession is one issued login. Tokens embed the SessionID; revoking
// the row invalidates every token minted for it.
type DeviceSession struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	SessionID      string    `gorm:"column:session_id;uniqueIndex;size:64;not null" json:"session_id"`
	RawUserAgent   string    `gorm:"type:text" json:"-"`
	DeviceName     string    `gorm:"size:128" json:"device_name"`
	DeviceType     string    `gorm:"size:16" json:"device_type"`
	OSName         string    `gorm:"column:os_name;size:64" json:"os_name"`
	OSVersion      string    `gorm:"column:os_version;size:64" json:"os_version"`
	BrowserName    string    `gorm:"size:64" json:"browser_name"`
	BrowserVersion string    `gorm:"size:64" json:"browser_version"`
	Brand          string    `gorm:"size:64" json:"brand"`
	Model          string    `gorm:"size:64" json:"model"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
	Revoked        bool      `gorm:"default:false" json:"revoked"`
}

func (DeviceSession) TableName() string { return "device_session" }

// ClientLabel renders the session for audit lines, e.g.
// "Chrome 120 on Windows 11 (desktop)".
func (s *DeviceSession) ClientLabel() string {
	browser := s.BrowserName
	if browser == "" {
		browser = "Unknown client"
	}
	if s.BrowserVersion != "" {
		browser += " " + s.BrowserVersion
	}
	os := s.OSName
	if os == "" {
		os = "unknown OS"
	}
	if s.OSVersion != "" {
		os += " " + s.OSVersion
	}
	kind := s.DeviceType
	if kind == "" {
		kind = DeviceUnknown
	}
	return browser + " on " + os + " (" + kind + ")"
}
