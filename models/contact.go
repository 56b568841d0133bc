package models

import (
	"time"
)

const (
	StageLead       = "lead"
	StageProspect   = "prospect"
	StageClient     = "client"
	StagePastClient = "past_client"
	StageSphere     = "sphere"
)

type Contact struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OwnerID           uint       `gorm:"not null;index" json:"owner_id"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Email             string     `gorm:"size:255;index" json:"email,omitempty"`
	Phone             string     `gorm:"size:32" json:"phone,omitempty"`
	Stage             string     `gorm:"size:20;not null;default:'lead'" json:"stage"`
	Source            string     `gorm:"size:64" json:"source,omitempty"`
	LastContactedAt   *time.Time `json:"last_contacted_at,omitempty"`
	ReferralsGiven    int        `gorm:"not null;default:0" json:"referrals_given"`
	RelationshipScore int        `gorm:"not null;default:0;index" json:"relationship_score"`
	ScoreTier         string     `gorm:"size:8;not null;default:'cold'" json:"score_tier"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

const (
	InteractionCall    = "call"
	InteractionEmail   = "email"
	InteractionSMS     = "sms"
	InteractionMeeting = "meeting"
	InteractionNote    = "note"
)

type Interaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContactID  uint      `gorm:"not null;index" json:"contact_id"`
	AuthorID   uint      `json:"author_id"`
	Kind       string    `gorm:"size:16;not null" json:"kind"`
	Notes      string    `gorm:"type:text" json:"notes,omitempty"`
	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
