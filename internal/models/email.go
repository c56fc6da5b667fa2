package models

import (
	"time"
)

type EmailStatus string

const (
	EmailQueued EmailStatus = "queued"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailMessage is a queued outbound email and its delivery log. Delivery
// happens in the background worker; the row records which provider finally
// sent it, or why it failed.
type EmailMessage struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	To      string `json:"to" gorm:"not null;size:255" validate:"required,email"`
	Subject string `json:"subject" gorm:"not null;size:500" validate:"required,max=500"`
	Body    string `json:"body" gorm:"type:text;not null" validate:"required"`

	Status   EmailStatus `json:"status" gorm:"not null;default:queued;index"`
	Provider string      `json:"provider,omitempty" gorm:"size:20"` // "api" or "smtp"

	// Attempts counts delivery tries across providers; LastError keeps the
	// most recent failure for the failure log.
	Attempts  int     `json:"attempts" gorm:"default:0"`
	LastError *string `json:"last_error,omitempty" gorm:"type:text"`

	AttemptID *uint `json:"attempt_id,omitempty" gorm:"index"` // result emails link back to the attempt

	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (EmailMessage) TableName() string {
	return "email_messages"
}
