package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryMethod is a channel a notification can be delivered through.
type DeliveryMethod string

const (
	MethodEmail    DeliveryMethod = "EMAIL"
	MethodTelegram DeliveryMethod = "TELEGRAM"
	MethodSMS      DeliveryMethod = "SMS"
)

// AttemptStatus is the state of a single delivery attempt.
//
// Every attempt starts as PENDING and finishes as exactly one of SENT or
// FAILED within the same dispatch call. RETRY never appears on an attempt
// row; the schema carries it for the notification-level trajectory the
// scheduler records when it re-enqueues.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptSent    AttemptStatus = "SENT"
	AttemptFailed  AttemptStatus = "FAILED"
	AttemptRetry   AttemptStatus = "RETRY"
)

// DeliveryAttempt records one try to deliver a notification via one channel.
//
// Attempt numbers for a notification form a contiguous sequence starting at 1;
// ordering by attempt number equals creation order.
type DeliveryAttempt struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	Method         DeliveryMethod `json:"method"`
	Status         AttemptStatus  `json:"status"`
	AttemptNumber  int            `json:"attempt_number"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`      // set only on transition into SENT
	ErrorMessage   string         `json:"error_message,omitempty"` // set only on transition into FAILED
	CreatedAt      time.Time      `json:"created_at"`
}
