package models

import (
	"time"
)

type Thread struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	Subject       string              `gorm:"size:255;not null" json:"subject"`
	CreatedBy     uint                `json:"created_by"`
	ContactID     *uint               `gorm:"index" json:"contact_id,omitempty"`
	LastMessageAt time.Time           `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Participants  []ThreadParticipant `json:"participants,omitempty"`
	Messages      []Message           `json:"messages,omitempty"`
}

// ThreadParticipant carries the per-user read state of a thread.
type ThreadParticipant struct {
	ThreadID   uint      `gorm:"primaryKey" json:"thread_id"`
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LastReadAt time.Time `json:"last_read_at"`
	CreatedAt  time.Time `json:"created_at"`
}
