package model

import "github.com/google/uuid"

// UserNotificationSettings holds a user's per-channel delivery preferences.
// One row per user; consumed read-only by the delivery engine.
type UserNotificationSettings struct {
	UserID          uuid.UUID `json:"user_id"`
	Email           string    `json:"email"`
	TelegramChatID  string    `json:"telegram_chat_id"`
	PhoneNumber     string    `json:"phone_number"`
	EmailEnabled    bool      `json:"email_enabled"`
	TelegramEnabled bool      `json:"telegram_enabled"`
	SMSEnabled      bool      `json:"sms_enabled"`
}
