package dto

// CreateRequest is the payload for creating a notification.
// ScheduledFor uses "2006-01-02 15:04:05"; empty means deliver now.
type CreateRequest struct {
	UserID       string `json:"user_id" validate:"required,uuid"`
	Title        string `json:"title" validate:"required,max=255"`
	Message      string `json:"message" validate:"required"`
	Type         string `json:"type" validate:"omitempty,oneof=INFO WARNING ERROR SUCCESS"`
	ScheduledFor string `json:"scheduled_for" validate:"omitempty"`
}

// UpdateSettingsRequest is the payload for replacing a user's channel
// preferences.
type UpdateSettingsRequest struct {
	Email           string `json:"email" validate:"omitempty,email"`
	TelegramChatID  string `json:"telegram_chat_id"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,e164"`
	EmailEnabled    bool   `json:"email_enabled"`
	TelegramEnabled bool   `json:"telegram_enabled"`
	SMSEnabled      bool   `json:"sms_enabled"`
}
