package models

import (
	"time"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilitySystem  = "system"
)

// ReferralMessage is a note attached to a referral. Rows are never updated.
type ReferralMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferralID uint      `gorm:"not null;index" json:"referral_id"`
	ClaimID    *uint     `gorm:"index" json:"claim_id,omitempty"`
	AuthorID   *uint     `json:"author_id,omitempty"` // nil for system messages
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Visibility string    `gorm:"size:16;not null" json:"visibility"` // public, private, system
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
