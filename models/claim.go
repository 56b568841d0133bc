package models

import (
	"time"
)

const (
	ClaimStatusRequested = "requested"
	ClaimStatusAccepted  = "accepted"
	ClaimStatusRejected  = "rejected"
)

type Claim struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ReferralID uint       `gorm:"not null;index" json:"referral_id"`
	Referral   *Referral  `gorm:"foreignKey:ReferralID" json:"referral,omitempty"`
	ClaimantID uint       `gorm:"not null;index" json:"claimant_id"`
	Claimant   *User      `gorm:"foreignKey:ClaimantID" json:"claimant,omitempty"`
	Status     string     `gorm:"size:20;not null;default:'requested'" json:"status"` // requested, accepted, rejected
	Note       string     `gorm:"type:text" json:"note,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsActive reports whether the claim still counts against the
// one-claim-per-referral limit.
func (c *Claim) IsActive() bool {
	return c.Status != ClaimStatusRejected
}
