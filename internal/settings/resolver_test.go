package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/dispatcher/internal/model"
)

func TestUsable_AllChannels(t *testing.T) {
	s := model.UserNotificationSettings{
		Email:           "user@example.com",
		TelegramChatID:  "12345",
		PhoneNumber:     "+15550001111",
		EmailEnabled:    true,
		TelegramEnabled: true,
		SMSEnabled:      true,
	}

	channels := Usable(s)

	require.Len(t, channels, 3)
	assert.Equal(t, model.MethodEmail, channels[0].Method)
	assert.Equal(t, model.MethodTelegram, channels[1].Method)
	assert.Equal(t, model.MethodSMS, channels[2].Method)
	assert.Equal(t, "user@example.com", channels[0].Destination)
	assert.Equal(t, "12345", channels[1].Destination)
	assert.Equal(t, "+15550001111", channels[2].Destination)
}

func TestUsable_DisabledChannelSkipped(t *testing.T) {
	s := model.UserNotificationSettings{
		Email:           "user@example.com",
		TelegramChatID:  "12345",
		EmailEnabled:    false,
		TelegramEnabled: true,
	}

	channels := Usable(s)

	require.Len(t, channels, 1)
	assert.Equal(t, model.MethodTelegram, channels[0].Method)
}

func TestUsable_EnabledWithoutDestination(t *testing.T) {
	// SMS is enabled but the phone number is missing; the channel is not usable.
	s := model.UserNotificationSettings{
		SMSEnabled: true,
	}

	assert.Empty(t, Usable(s))
}

func TestUsable_NothingConfigured(t *testing.T) {
	assert.Empty(t, Usable(model.UserNotificationSettings{}))
}

type fakeSettingsRepo struct {
	settings model.UserNotificationSettings
	err      error
}

func (f *fakeSettingsRepo) GetByUserID(_ context.Context, _ uuid.UUID) (model.UserNotificationSettings, error) {
	return f.settings, f.err
}

func TestResolver_Resolve(t *testing.T) {
	repo := &fakeSettingsRepo{
		settings: model.UserNotificationSettings{
			Email:        "user@example.com",
			EmailEnabled: true,
		},
	}

	r := NewResolver(repo)

	channels, err := r.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, model.MethodEmail, channels[0].Method)
}

func TestResolver_Resolve_NoSettingsRow(t *testing.T) {
	r := NewResolver(&fakeSettingsRepo{err: ErrSettingsNotFound})

	channels, err := r.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestResolver_Resolve_RepoError(t *testing.T) {
	r := NewResolver(&fakeSettingsRepo{err: errors.New("connection refused")})

	_, err := r.Resolve(context.Background(), uuid.New())
	assert.Error(t, err)
}
