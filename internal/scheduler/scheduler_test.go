package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/policy"
	"github.com/notifyhub/dispatcher/internal/settings"
)

type memStore struct {
	mu        sync.Mutex
	notifs    map[uuid.UUID]model.Notification
	attempts  map[uuid.UUID][]model.DeliveryAttempt
	claims    map[uuid.UUID]uuid.UUID
	retries   map[uuid.UUID]time.Time
	claimHits int

	// honorCtx makes write methods fail once their context is cancelled,
	// the way a real driver does.
	honorCtx bool
}

func (s *memStore) ctxErr(ctx context.Context) error {
	if s.honorCtx {
		return ctx.Err()
	}
	return nil
}

func newMemStore(notifs ...model.Notification) *memStore {
	s := &memStore{
		notifs:   make(map[uuid.UUID]model.Notification),
		attempts: make(map[uuid.UUID][]model.DeliveryAttempt),
		claims:   make(map[uuid.UUID]uuid.UUID),
		retries:  make(map[uuid.UUID]time.Time),
	}
	for _, n := range notifs {
		s.notifs[n.ID] = n
	}
	return s
}

func (s *memStore) FetchDue(_ context.Context, now time.Time, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Notification
	for _, n := range s.notifs {
		if !n.IsSent && (n.Status == model.StatusPending || n.Status == model.StatusRetry) &&
			!n.NextAttemptAt.After(now) && len(due) < limit {
			due = append(due, n)
		}
	}
	return due, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifs[id], nil
}

func (s *memStore) Claim(_ context.Context, id, owner uuid.UUID, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.claims[id]; held {
		return false, nil
	}

	s.claims[id] = owner
	s.claimHits++
	return true, nil
}

func (s *memStore) Release(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

func (s *memStore) ListAttempts(_ context.Context, id uuid.UUID) ([]model.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DeliveryAttempt(nil), s.attempts[id]...), nil
}

func (s *memStore) ScheduleRetry(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.notifs[id]
	n.NextAttemptAt = at
	s.notifs[id] = n
	s.retries[id] = at
	return nil
}

// CountAttempts, CreateAttempt, MarkAttemptSent, MarkAttemptFailed and
// MarkSent implement the dispatcher's store so the scheduler tests can run
// against the real dispatcher.

func (s *memStore) CountAttempts(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts[id]), nil
}

func (s *memStore) CreateAttempt(_ context.Context, a model.DeliveryAttempt) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	s.attempts[a.NotificationID] = append(s.attempts[a.NotificationID], a)
	return a.ID, nil
}

func (s *memStore) MarkAttemptSent(ctx context.Context, attemptID uuid.UUID, sentAt time.Time) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, list := range s.attempts {
		for i := range list {
			if list[i].ID == attemptID {
				list[i].Status = model.AttemptSent
				list[i].SentAt = &sentAt
				s.attempts[id] = list
				return nil
			}
		}
	}
	return nil
}

func (s *memStore) MarkAttemptFailed(ctx context.Context, attemptID uuid.UUID, reason string) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, list := range s.attempts {
		for i := range list {
			if list[i].ID == attemptID {
				list[i].Status = model.AttemptFailed
				list[i].ErrorMessage = reason
				s.attempts[id] = list
				return nil
			}
		}
	}
	return nil
}

func (s *memStore) MarkSent(ctx context.Context, id uuid.UUID, _ time.Time) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.notifs[id]
	n.IsSent = true
	n.Status = model.StatusSent
	s.notifs[id] = n
	return nil
}

type memStatus struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
	honorCtx bool
}

func newMemStatus() *memStatus {
	return &memStatus{statuses: make(map[uuid.UUID]string)}
}

func (m *memStatus) SetStatus(ctx context.Context, _ retry.Strategy, id uuid.UUID, status string) error {
	if m.honorCtx {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *memStatus) get(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

type staticResolver struct {
	channels []settings.Channel
}

func (r staticResolver) Resolve(_ context.Context, _ uuid.UUID) ([]settings.Channel, error) {
	return r.channels, nil
}

type scriptSender struct {
	mu   sync.Mutex
	errs []error // consumed in order; nil means success
	sent int
}

func (s *scriptSender) Send(_, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent++
	if len(s.errs) == 0 {
		return nil
	}

	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func dueNotification() model.Notification {
	now := time.Now().Add(-time.Second)
	return model.Notification{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Title:         "Hello",
		Message:       "World",
		Type:          model.TypeInfo,
		Status:        model.StatusPending,
		ScheduledFor:  now,
		NextAttemptAt: now,
	}
}

func newTestScheduler(store *memStore, sender *scriptSender, status *memStatus, channels []settings.Channel) *Scheduler {
	d := dispatch.New(store, map[model.DeliveryMethod]dispatch.Sender{
		model.MethodEmail:    sender,
		model.MethodTelegram: sender,
	})
	p := policy.New(retry.Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 2}, time.Minute)

	return New(store, d, staticResolver{channels: channels}, p, status, Config{
		Workers:      2,
		PollInterval: 10 * time.Millisecond,
		BatchLimit:   10,
		ClaimTTL:     time.Minute,
	})
}

func emailOnly() []settings.Channel {
	return []settings.Channel{{Method: model.MethodEmail, Destination: "user@example.com"}}
}

func TestProcess_FirstAttemptSucceeds(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	sender := &scriptSender{}
	status := newMemStatus()

	s := newTestScheduler(store, sender, status, emailOnly())
	s.process(context.Background(), n)

	assert.Equal(t, model.StatusSent, status.get(n.ID))
	assert.True(t, store.notifs[n.ID].IsSent)

	attempts := store.attempts[n.ID]
	require.Len(t, attempts, 1)
	assert.Equal(t, model.AttemptSent, attempts[0].Status)
	assert.Equal(t, 1, attempts[0].AttemptNumber)

	// Claim released after the cycle.
	assert.Empty(t, store.claims)
}

func TestProcess_FailureSchedulesRetry(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	sender := &scriptSender{errs: []error{assert.AnError}}
	status := newMemStatus()

	s := newTestScheduler(store, sender, status, emailOnly())
	s.process(context.Background(), n)

	assert.Equal(t, model.StatusRetry, status.get(n.ID))

	retryAt, ok := store.retries[n.ID]
	require.True(t, ok)
	assert.True(t, retryAt.After(time.Now()))

	attempts := store.attempts[n.ID]
	require.Len(t, attempts, 1)
	assert.Equal(t, model.AttemptFailed, attempts[0].Status)
}

func TestProcess_NoUsableChannel(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	status := newMemStatus()

	s := newTestScheduler(store, &scriptSender{}, status, nil)
	s.process(context.Background(), n)

	assert.Equal(t, model.StatusGivenUp, status.get(n.ID))

	attempts := store.attempts[n.ID]
	require.Len(t, attempts, 1)
	assert.Equal(t, model.AttemptFailed, attempts[0].Status)
	assert.Equal(t, policy.ReasonNoUsableChannel, attempts[0].ErrorMessage)
}

func TestProcess_GivesUpAfterAllChannelsExhausted(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	// Every send fails.
	sender := &scriptSender{errs: []error{
		assert.AnError, assert.AnError, assert.AnError,
		assert.AnError, assert.AnError, assert.AnError,
	}}
	status := newMemStatus()

	channels := []settings.Channel{
		{Method: model.MethodEmail, Destination: "user@example.com"},
		{Method: model.MethodTelegram, Destination: "12345"},
	}
	s := newTestScheduler(store, sender, status, channels)

	// Drive attempt cycles until the engine gives up, simulating the poll
	// loop without waiting out backoff delays.
	for i := 0; i < 6; i++ {
		cur := store.notifs[n.ID]
		cur.NextAttemptAt = time.Now().Add(-time.Second)
		store.notifs[n.ID] = cur

		s.process(context.Background(), cur)
	}

	assert.Equal(t, model.StatusGivenUp, status.get(n.ID))
	assert.False(t, store.notifs[n.ID].IsSent)

	attempts := store.attempts[n.ID]
	require.Len(t, attempts, 6)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
		assert.Equal(t, model.AttemptFailed, a.Status)
	}

	// First three on email, then escalation to telegram.
	assert.Equal(t, model.MethodEmail, attempts[2].Method)
	assert.Equal(t, model.MethodTelegram, attempts[3].Method)
}

func TestProcess_SkipsWhenAlreadyClaimed(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	status := newMemStatus()

	s := newTestScheduler(store, &scriptSender{}, status, emailOnly())

	// Another worker holds the claim.
	store.claims[n.ID] = uuid.New()

	s.process(context.Background(), n)

	assert.Empty(t, store.attempts[n.ID])
	assert.Empty(t, status.get(n.ID))
}

func TestProcess_ConcurrentClaims(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	sender := &scriptSender{}
	status := newMemStatus()

	s1 := newTestScheduler(store, sender, status, emailOnly())
	s2 := newTestScheduler(store, sender, status, emailOnly())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s1.process(context.Background(), n) }()
	go func() { defer wg.Done(); s2.process(context.Background(), n) }()
	wg.Wait()

	// Exactly one attempt; the loser observed a skip. The winner may have
	// released before the loser claims, in which case the loser reloads and
	// sees the notification already sent.
	require.Len(t, store.attempts[n.ID], 1)
	assert.Equal(t, model.AttemptSent, store.attempts[n.ID][0].Status)
}

func TestProcess_SkipsCancelled(t *testing.T) {
	n := dueNotification()
	n.Status = model.StatusCancelled
	store := newMemStore(n)
	status := newMemStatus()

	s := newTestScheduler(store, &scriptSender{}, status, emailOnly())
	s.process(context.Background(), n)

	assert.Empty(t, store.attempts[n.ID])
}

func TestProcess_SkipsNotYetDue(t *testing.T) {
	n := dueNotification()
	n.NextAttemptAt = time.Now().Add(time.Hour)
	store := newMemStore(n)
	status := newMemStatus()

	s := newTestScheduler(store, &scriptSender{}, status, emailOnly())
	s.process(context.Background(), n)

	assert.Empty(t, store.attempts[n.ID])
}

func TestRun_DeliversAndShutsDown(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	sender := &scriptSender{}
	status := newMemStatus()

	s := newTestScheduler(store, sender, status, emailOnly())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return status.get(n.ID) == model.StatusSent
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not shut down")
	}

	require.Len(t, store.attempts[n.ID], 1)
}

type shutdownSender struct {
	cancel context.CancelFunc
}

func (s *shutdownSender) Send(_, _, _ string) error {
	s.cancel()
	return nil
}

func TestRun_ShutdownMidSendStillFinalizes(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	store.honorCtx = true
	status := newMemStatus()
	status.honorCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sender simulates the shutdown signal arriving while the message is
	// in flight; delivery itself succeeds.
	d := dispatch.New(store, map[model.DeliveryMethod]dispatch.Sender{
		model.MethodEmail: &shutdownSender{cancel: cancel},
	})
	p := policy.New(retry.Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 2}, time.Minute)

	s := New(store, d, staticResolver{channels: emailOnly()}, p, status, Config{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		BatchLimit:   10,
		ClaimTTL:     time.Minute,
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not shut down")
	}

	// The in-flight attempt ran to completion despite the cancelled signal
	// context: the row finalized, the flag flipped, the status converged.
	assert.True(t, store.notifs[n.ID].IsSent)
	assert.Equal(t, model.StatusSent, status.get(n.ID))
	require.Len(t, store.attempts[n.ID], 1)
	assert.Equal(t, model.AttemptSent, store.attempts[n.ID][0].Status)
}

func TestSubmit_DispatchesWithoutPoll(t *testing.T) {
	n := dueNotification()
	store := newMemStore(n)
	sender := &scriptSender{}
	status := newMemStatus()

	s := newTestScheduler(store, sender, status, emailOnly())
	// Long poll interval: only Submit can trigger delivery quickly.
	s.cfg.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Submit(ctx, n)

	require.Eventually(t, func() bool {
		return status.get(n.ID) == model.StatusSent
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
