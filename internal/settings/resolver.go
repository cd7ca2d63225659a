// Package settings resolves the ordered list of channels a notification
// may be delivered through for a given user.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/notifyhub/dispatcher/internal/model"
)

// Channel pairs a delivery method with the destination address taken from
// the user's settings.
type Channel struct {
	Method      model.DeliveryMethod
	Destination string
}

// Usable returns the channels that are enabled and have a non-empty
// destination, in fixed preference order: EMAIL, TELEGRAM, SMS.
//
// An empty result is valid and means the user has no deliverable channel.
func Usable(s model.UserNotificationSettings) []Channel {
	var channels []Channel

	if s.EmailEnabled && s.Email != "" {
		channels = append(channels, Channel{Method: model.MethodEmail, Destination: s.Email})
	}
	if s.TelegramEnabled && s.TelegramChatID != "" {
		channels = append(channels, Channel{Method: model.MethodTelegram, Destination: s.TelegramChatID})
	}
	if s.SMSEnabled && s.PhoneNumber != "" {
		channels = append(channels, Channel{Method: model.MethodSMS, Destination: s.PhoneNumber})
	}

	return channels
}

type settingsRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.UserNotificationSettings, error)
}

// ErrSettingsNotFound is returned by repositories when a user has no
// settings row. The resolver treats it as "no deliverable channel".
var ErrSettingsNotFound = errors.New("notification settings not found")

// Resolver loads user settings and filters them down to usable channels.
type Resolver struct {
	repo settingsRepository
}

func NewResolver(repo settingsRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the user's usable channels in preference order.
// A user without a settings row gets an empty list, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) ([]Channel, error) {
	s, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get settings for user %s: %w", userID, err)
	}

	return Usable(s), nil
}
