package model

import "time"

const (
	// MinExpiresIn and MaxExpiresIn bound ExpiringLink.ExpiresIn, in seconds.
	MinExpiresIn = 30
	MaxExpiresIn = 30000

	// MarkerValid is the value stored under a link alias while the link is usable.
	MarkerValid = "valid"
)

// ExpiringLink is the durable record behind a shareable alias. It is never
// removed automatically; validity is decided by the marker store.
type ExpiringLink struct {
	Alias     string    `db:"alias" gorm:"primaryKey;size:36"`
	ImageID   string    `db:"image_id" gorm:"size:36;index;not null"`
	ExpiresIn int       `db:"expires_in" gorm:"not null"`
	CreatedAt time.Time `db:"created_at" gorm:"autoCreateTime"`

	Image *Image `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
}

// TTL returns ExpiresIn as a duration.
func (l *ExpiringLink) TTL() time.Duration {
	return time.Duration(l.ExpiresIn) * time.Second
}
