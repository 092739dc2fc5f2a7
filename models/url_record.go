package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultTTL is applied when a record is created without an explicit expiry.
const DefaultTTL = 30 * 24 * time.Hour

// URLRecord maps a short alias to its long target URL.
// The alias carries a unique index over every row, soft-deleted or expired ones included.
type URLRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OwnerID    *string        `gorm:"size:128;index" json:"owner_id,omitempty"`
	TargetURL  string         `gorm:"type:text;not null" json:"target_url"`
	Alias      string         `gorm:"size:128;uniqueIndex;not null" json:"alias"`
	ClickCount int64          `gorm:"not null;default:0" json:"click_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ExpiresAt  time.Time      `gorm:"index;not null" json:"expires_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName pins the table name used by migrations and raw queries.
func (URLRecord) TableName() string {
	return "urls"
}

// BeforeCreate fills timestamps and the default expiry when the caller left them empty.
// Every timestamp is stored in UTC: SQLite compares times as text, so mixed
// zones would order rows wrongly.
func (r *URLRecord) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = r.CreatedAt.Add(DefaultTTL)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	return nil
}

// IsActive reports whether the record is neither soft-deleted nor past its expiry at now.
func (r *URLRecord) IsActive(now time.Time) bool {
	return !r.DeletedAt.Valid && r.ExpiresAt.After(now)
}

// Owned reports whether the record belongs to owner.
func (r *URLRecord) Owned(owner string) bool {
	return r.OwnerID != nil && owner != "" && *r.OwnerID == owner
}
