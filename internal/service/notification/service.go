package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/rabbitmq/queue"
)

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

type wakeupPublisher interface {
	Publish(msg queue.WakeupMessage, strategy retry.Strategy) error
}

type notificationRepository interface {
	Create(context.Context, model.Notification) (uuid.UUID, error)
	GetStatusByID(context.Context, uuid.UUID) (string, error)
	UpdateStatus(context.Context, uuid.UUID, string) error
	GetAll(context.Context) ([]model.Notification, error)
	ListAttempts(context.Context, uuid.UUID) ([]model.DeliveryAttempt, error)
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Service is the API-facing orchestration layer: it persists notifications,
// keeps the status cache warm and wakes the scheduler up for new work.
type Service struct {
	repo  notificationRepository
	queue wakeupPublisher
	cache cache
}

func NewService(repo notificationRepository, queue wakeupPublisher, cache cache) *Service {
	return &Service{repo: repo, queue: queue, cache: cache}
}

// CreateNotification stores a new notification and announces it on the
// wake-up queue. Cache and queue failures are logged, not returned: the
// poller delivers the notification either way.
func (s *Service) CreateNotification(ctx context.Context, strategy retry.Strategy, n model.Notification) (uuid.UUID, error) {
	id, err := s.repo.Create(ctx, n)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}

	err = s.cache.SetWithRetry(ctx, strategy, id.String(), n.Status)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification")
	}

	msg := queue.WakeupMessage{
		ID:           id,
		ScheduledFor: n.ScheduledFor,
	}

	err = s.queue.Publish(msg, strategy)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to publish wake-up")
	}

	return id, nil
}

// GetNotificationStatusByID returns the externally observable state of a
// notification, preferring the cache and backfilling it on a miss.
func (s *Service) GetNotificationStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (string, error) {
	status, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	if err != nil {
		status, err = s.repo.GetStatusByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("get notification status: %w", err)
		}

		err = s.cache.SetWithRetry(ctx, strategy, id.String(), status)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification")
		}
	}

	return status, nil
}

// GetAllNotifications lists every notification, newest first.
func (s *Service) GetAllNotifications(ctx context.Context) ([]model.Notification, error) {
	notifications, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all notifications: %w", err)
	}

	return notifications, nil
}

// GetDeliveryAttempts returns the ordered attempt history for a notification.
func (s *Service) GetDeliveryAttempts(ctx context.Context, id uuid.UUID) ([]model.DeliveryAttempt, error) {
	attempts, err := s.repo.ListAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}

	return attempts, nil
}

// SetStatus updates the stored status and the cache together.
func (s *Service) SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status string) error {
	err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}

	err = s.cache.SetWithRetry(ctx, strategy, id.String(), status)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification")
	}

	return nil
}
