package models

import (
	"time"
)

const (
	ChannelNote  = "note"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is an inbox message posted to a thread.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Channel   string    `gorm:"size:16;not null;default:'note'" json:"channel"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	UserID    uint      `json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
