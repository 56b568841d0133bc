package models

import (
	"time"
)

const (
	DealProspecting   = "prospecting"
	DealUnderContract = "under_contract"
	DealClosedWon     = "closed_won"
	DealClosedLost    = "closed_lost"
)

type Deal struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ContactID  uint       `gorm:"not null;index" json:"contact_id"`
	OwnerID    uint       `gorm:"not null;index" json:"owner_id"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Stage      string     `gorm:"size:20;not null;default:'prospecting'" json:"stage"`
	ValueCents int64      `gorm:"not null;default:0" json:"value_cents"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsOpen reports whether the deal is still in the pipeline.
func (d *Deal) IsOpen() bool {
	return d.Stage == DealProspecting || d.Stage == DealUnderContract
}
