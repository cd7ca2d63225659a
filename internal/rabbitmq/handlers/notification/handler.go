package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/rabbitmq/queue"
	"github.com/notifyhub/dispatcher/internal/repository/notification"
)

type notificationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
}

type submitter interface {
	Submit(ctx context.Context, n model.Notification)
}

// Handler turns wake-up messages into immediate dispatch work. Messages for
// notifications that are not yet due are dropped; the scheduler's poll loop
// picks those up when their time comes.
type Handler struct {
	store     notificationStore
	scheduler submitter
}

func NewHandler(store notificationStore, scheduler submitter) *Handler {
	return &Handler{store: store, scheduler: scheduler}
}

func (h *Handler) HandleMessage(ctx context.Context, msg queue.WakeupMessage) {
	n, err := h.store.GetByID(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", msg.ID.String()).Msg("wake-up for unknown notification")
			return
		}

		zlog.Logger.Error().Err(err).Str("id", msg.ID.String()).Msg("failed to load notification")
		return
	}

	if n.IsSent || n.Status == model.StatusCancelled || n.Status == model.StatusGivenUp {
		return
	}

	if n.NextAttemptAt.After(time.Now()) {
		// Not due yet; polling covers scheduled delivery.
		return
	}

	h.scheduler.Submit(ctx, n)
}

type wakeupConsumer interface {
	Consume(ctx context.Context, out chan<- queue.WakeupMessage, strategy retry.Strategy) error
}

// Run consumes wake-up messages until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, q wakeupConsumer, strategy retry.Strategy) {
	msgChan := make(chan queue.WakeupMessage)

	go func() {
		if err := q.Consume(ctx, msgChan, strategy); err != nil {
			zlog.Logger.Error().Err(err).Msg("wake-up consumer stopped")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgChan:
			h.HandleMessage(ctx, msg)
		}
	}
}
