package models

import (
	"time"
)

const (
	ReferralStatusOpen   = "open"
	ReferralStatusClosed = "closed"
)

// ReferralCategories lists the accepted values for Referral.Category.
var ReferralCategories = []string{"buyer", "seller", "rental", "commercial", "investment", "other"}

type Referral struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatorID   uint       `gorm:"not null;index" json:"creator_id"`
	Creator     *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Category    string     `gorm:"size:32;not null;index" json:"category"`
	Location    string     `gorm:"size:255" json:"location"`
	FeePercent  float64    `gorm:"not null;default:0" json:"fee_percent"`
	Status      string     `gorm:"size:20;not null;default:'open';index" json:"status"` // open, closed
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (r *Referral) IsOpen() bool {
	return r.Status == ReferralStatusOpen
}
