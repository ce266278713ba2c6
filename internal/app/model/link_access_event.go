package model

import "time"

// LinkAccessEvent records a successful resolution of an expiring link.
type LinkAccessEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Alias     string    `json:"alias" gorm:"size:36;index"`
	ImageID   string    `json:"image_id" gorm:"size:36;index"`
	IP        string    `json:"ip" gorm:"size:64"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

const (
	AccessStreamName     = "LINK_ACCESS"
	AccessStreamSubject  = "links.access"
	AccessConsumerName   = "link-access-logger"
	AccessStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
