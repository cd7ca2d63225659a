package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/rabbitmq/queue"
	"github.com/notifyhub/dispatcher/internal/repository/notification"
)

type fakeNotificationStore struct {
	notif model.Notification
	err   error
}

func (f *fakeNotificationStore) GetByID(_ context.Context, _ uuid.UUID) (model.Notification, error) {
	return f.notif, f.err
}

type fakeSubmitter struct {
	submitted []model.Notification
}

func (f *fakeSubmitter) Submit(_ context.Context, n model.Notification) {
	f.submitted = append(f.submitted, n)
}

func wakeup(id uuid.UUID) queue.WakeupMessage {
	return queue.WakeupMessage{ID: id, ScheduledFor: time.Now()}
}

func TestHandleMessage_SubmitsDueNotification(t *testing.T) {
	n := model.Notification{
		ID:            uuid.New(),
		Status:        model.StatusPending,
		NextAttemptAt: time.Now().Add(-time.Second),
	}

	store := &fakeNotificationStore{notif: n}
	sub := &fakeSubmitter{}
	h := NewHandler(store, sub)

	h.HandleMessage(context.Background(), wakeup(n.ID))

	assert.Len(t, sub.submitted, 1)
	assert.Equal(t, n.ID, sub.submitted[0].ID)
}

func TestHandleMessage_DropsNotYetDue(t *testing.T) {
	n := model.Notification{
		ID:            uuid.New(),
		Status:        model.StatusPending,
		NextAttemptAt: time.Now().Add(time.Hour),
	}

	sub := &fakeSubmitter{}
	h := NewHandler(&fakeNotificationStore{notif: n}, sub)

	h.HandleMessage(context.Background(), wakeup(n.ID))

	assert.Empty(t, sub.submitted)
}

func TestHandleMessage_DropsTerminalStates(t *testing.T) {
	for _, status := range []string{model.StatusCancelled, model.StatusGivenUp} {
		n := model.Notification{
			ID:            uuid.New(),
			Status:        status,
			NextAttemptAt: time.Now().Add(-time.Second),
		}

		sub := &fakeSubmitter{}
		h := NewHandler(&fakeNotificationStore{notif: n}, sub)

		h.HandleMessage(context.Background(), wakeup(n.ID))

		assert.Empty(t, sub.submitted, "status %s must not be submitted", status)
	}
}

func TestHandleMessage_DropsAlreadySent(t *testing.T) {
	n := model.Notification{
		ID:            uuid.New(),
		Status:        model.StatusSent,
		IsSent:        true,
		NextAttemptAt: time.Now().Add(-time.Second),
	}

	sub := &fakeSubmitter{}
	h := NewHandler(&fakeNotificationStore{notif: n}, sub)

	h.HandleMessage(context.Background(), wakeup(n.ID))

	assert.Empty(t, sub.submitted)
}

func TestHandleMessage_UnknownNotification(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewHandler(&fakeNotificationStore{err: notification.ErrNotificationNotFound}, sub)

	h.HandleMessage(context.Background(), wakeup(uuid.New()))

	assert.Empty(t, sub.submitted)
}

func TestHandleMessage_StoreError(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewHandler(&fakeNotificationStore{err: errors.New("connection refused")}, sub)

	h.HandleMessage(context.Background(), wakeup(uuid.New()))

	assert.Empty(t, sub.submitted)
}
