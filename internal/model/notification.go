package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a notification for presentation purposes.
type NotificationType string

const (
	TypeInfo    NotificationType = "INFO"
	TypeWarning NotificationType = "WARNING"
	TypeError   NotificationType = "ERROR"
	TypeSuccess NotificationType = "SUCCESS"
)

// Notification statuses observable by monitoring collaborators.
const (
	StatusPending   = "pending"
	StatusRetry     = "retry" // re-enqueued by the scheduler, next attempt scheduled
	StatusSent      = "sent"
	StatusGivenUp   = "given_up"
	StatusCancelled = "cancelled"
)

// Notification represents a message to be delivered to a user at or after
// a scheduled time.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	Status        string           `json:"status"`
	IsSent        bool             `json:"is_sent"`         // flips false->true exactly once
	ScheduledFor  time.Time        `json:"scheduled_for"`   // earliest delivery time
	NextAttemptAt time.Time        `json:"next_attempt_at"` // when the scheduler should pick it up again
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
