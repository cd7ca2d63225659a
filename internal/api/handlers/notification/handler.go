package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/api/dto"
	"github.com/notifyhub/dispatcher/internal/api/respond"
	"github.com/notifyhub/dispatcher/internal/config"
	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/repository/notification"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks

type notifService interface {
	CreateNotification(context.Context, retry.Strategy, model.Notification) (uuid.UUID, error)
	GetNotificationStatusByID(context.Context, retry.Strategy, uuid.UUID) (string, error)
	GetAllNotifications(context.Context) ([]model.Notification, error)
	GetDeliveryAttempts(context.Context, uuid.UUID) ([]model.DeliveryAttempt, error)
	SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status string) error
}

type Handler struct {
	service   notifService
	validator *validator.Validate
	cfg       *config.Config
}

func NewHandler(s notifService, v *validator.Validate, cfg *config.Config) *Handler {
	return &Handler{service: s, validator: v, cfg: cfg}
}

func (h *Handler) Create(c *ginext.Context) {
	var req dto.CreateRequest

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

	scheduledFor := time.Now()
	if req.ScheduledFor != "" {
		parsed, err := time.ParseInLocation(time.DateTime, req.ScheduledFor, time.UTC)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("scheduled_for", req.ScheduledFor).Msg("failed to parse scheduled_for")
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid scheduled_for, want YYYY-MM-DD HH:MM:SS"))
			return
		}
		scheduledFor = parsed
	}

	notifType := model.NotificationType(req.Type)
	if req.Type == "" {
		notifType = model.TypeInfo
	}

	notif := model.Notification{
		UserID:       uuid.MustParse(req.UserID),
		Title:        req.Title,
		Message:      req.Message,
		Type:         notifType,
		Status:       model.StatusPending,
		ScheduledFor: scheduledFor,
	}

	id, err := h.service.CreateNotification(c.Request.Context(), h.cfg.Retry, notif)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("title", notif.Title).Msg("failed to create notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, id)
}

func (h *Handler) GetStatus(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	status, err := h.service.GetNotificationStatusByID(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, status)
}

func (h *Handler) GetAll(c *ginext.Context) {
	notifications, err := h.service.GetAllNotifications(c.Request.Context())
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to get notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, notifications)
}

func (h *Handler) GetAttempts(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	attempts, err := h.service.GetDeliveryAttempts(c.Request.Context(), id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get delivery attempts")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, attempts)
}

func (h *Handler) Cancel(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	err := h.service.SetStatus(c.Request.Context(), h.cfg.Retry, id, model.StatusCancelled)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cancel notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "notification cancelled")
}

func (h *Handler) parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("idStr", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	if id == uuid.Nil {
		zlog.Logger.Warn().Msg("missing id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	return id, true
}
