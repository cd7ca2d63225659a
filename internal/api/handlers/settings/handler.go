package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/api/dto"
	"github.com/notifyhub/dispatcher/internal/api/respond"
	"github.com/notifyhub/dispatcher/internal/model"
	settingspkg "github.com/notifyhub/dispatcher/internal/settings"
)

type settingsRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (model.UserNotificationSettings, error)
	Upsert(ctx context.Context, s model.UserNotificationSettings) error
}

type Handler struct {
	repo      settingsRepository
	validator *validator.Validate
}

func NewHandler(repo settingsRepository, v *validator.Validate) *Handler {
	return &Handler{repo: repo, validator: v}
}

func (h *Handler) Get(c *ginext.Context) {
	userID, ok := h.parseUserID(c)
	if !ok {
		return
	}

	s, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, settingspkg.ErrSettingsNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("settings not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get settings")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, s)
}

func (h *Handler) Update(c *ginext.Context) {
	userID, ok := h.parseUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateSettingsRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	s := model.UserNotificationSettings{
		UserID:          userID,
		Email:           req.Email,
		TelegramChatID:  req.TelegramChatID,
		PhoneNumber:     req.PhoneNumber,
		EmailEnabled:    req.EmailEnabled,
		TelegramEnabled: req.TelegramEnabled,
		SMSEnabled:      req.SMSEnabled,
	}

	if err := h.repo.Upsert(c.Request.Context(), s); err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to update settings")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, s)
}

func (h *Handler) parseUserID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil || id == uuid.Nil {
		zlog.Logger.Warn().Str("idStr", idStr).Msg("invalid user id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user id"))
		return uuid.Nil, false
	}

	return id, true
}
