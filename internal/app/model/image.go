package model

import (
	"path"
	"strings"
	"time"
)

// Image is an uploaded original owned by a single user. ID and owner never change.
type Image struct {
	ID           string    `db:"id" gorm:"primaryKey;size:36"`
	UserID       uint      `db:"user_id" gorm:"index;not null"`
	OriginalFile string    `db:"original_file" gorm:"size:512;not null"`
	UploadedAt   time.Time `db:"uploaded_at" gorm:"autoCreateTime;index"`

	Links []ExpiringLink `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
}

// Filename returns the last path element of the stored original.
func (i *Image) Filename() string {
	return path.Base(i.OriginalFile)
}

// ContentType maps the stored extension onto the served media type.
func (i *Image) ContentType() string {
	switch strings.ToLower(path.Ext(i.OriginalFile)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
