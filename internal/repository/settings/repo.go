package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/settings"
)

// Repository provides read/write access to per-user notification settings.
// The delivery engine only reads them; writes come from the HTTP API.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID retrieves the settings row for a user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (model.UserNotificationSettings, error) {
	query := `
		SELECT user_id, email, telegram_chat_id, phone_number,
		       email_enabled, telegram_enabled, sms_enabled
		FROM user_notification_settings
		WHERE user_id = $1;
    `

	var s model.UserNotificationSettings
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.Email, &s.TelegramChatID, &s.PhoneNumber,
		&s.EmailEnabled, &s.TelegramEnabled, &s.SMSEnabled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserNotificationSettings{}, settings.ErrSettingsNotFound
		}

		return model.UserNotificationSettings{}, fmt.Errorf("failed to get notification settings: %w", err)
	}

	return s, nil
}

// Upsert creates or replaces the settings row for a user.
func (r *Repository) Upsert(ctx context.Context, s model.UserNotificationSettings) error {
	query := `
		INSERT INTO user_notification_settings (
		    user_id, email, telegram_chat_id, phone_number,
		    email_enabled, telegram_enabled, sms_enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
		    email = EXCLUDED.email,
		    telegram_chat_id = EXCLUDED.telegram_chat_id,
		    phone_number = EXCLUDED.phone_number,
		    email_enabled = EXCLUDED.email_enabled,
		    telegram_enabled = EXCLUDED.telegram_enabled,
		    sms_enabled = EXCLUDED.sms_enabled;
    `

	_, err := r.db.ExecContext(
		ctx, query, s.UserID, s.Email, s.TelegramChatID, s.PhoneNumber,
		s.EmailEnabled, s.TelegramEnabled, s.SMSEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert notification settings: %w", err)
	}

	return nil
}
