// Package scheduler runs the delivery loop: it polls the store for due
// notifications, fans dispatch work out to a bounded worker pool, and
// re-enqueues failures according to the retry policy.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/policy"
	"github.com/notifyhub/dispatcher/internal/settings"
)

type store interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	Claim(ctx context.Context, id, owner uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
	ListAttempts(ctx context.Context, notificationID uuid.UUID) ([]model.DeliveryAttempt, error)
	ScheduleRetry(ctx context.Context, id uuid.UUID, at time.Time) error
}

type dispatcher interface {
	Attempt(ctx context.Context, n model.Notification, ch settings.Channel, number int) (dispatch.Result, error)
	RecordUndeliverable(ctx context.Context, n model.Notification) error
}

type channelResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) ([]settings.Channel, error)
}

type decider interface {
	Decide(history []model.DeliveryAttempt, channels []settings.Channel) policy.Decision
}

type statusSetter interface {
	SetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status string) error
}

// Config holds the scheduler's tunables.
type Config struct {
	Workers      int           // bounded parallelism across notifications
	PollInterval time.Duration // store polling period
	BatchLimit   int           // max due notifications fetched per poll
	ClaimTTL     time.Duration // claim lease; must exceed one attempt cycle
	Strategy     retry.Strategy
}

// Scheduler owns each claimed notification for exactly one attempt cycle.
// A single notification's attempts are strictly sequential; independent
// notifications run in parallel on the worker pool.
type Scheduler struct {
	store      store
	dispatcher dispatcher
	resolver   channelResolver
	policy     decider
	status     statusSetter
	cfg        Config

	id   uuid.UUID // claim owner id
	jobs chan model.Notification
}

func New(st store, d dispatcher, r channelResolver, p decider, status statusSetter, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = time.Minute
	}

	return &Scheduler{
		store:      st,
		dispatcher: d,
		resolver:   r,
		policy:     p,
		status:     status,
		cfg:        cfg,
		id:         uuid.New(),
		jobs:       make(chan model.Notification),
	}
}

// Run blocks until ctx is cancelled. On cancellation no new attempts start;
// in-flight attempts are allowed to complete before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			zlog.Logger.Printf("worker-%d started", id)

			for n := range s.jobs {
				// A job picked up before shutdown runs its whole cycle on a
				// detached context; only the poll loop observes cancellation.
				s.process(context.WithoutCancel(ctx), n)
			}

			zlog.Logger.Printf("worker-%d shutting down", id)
		}(i)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}

	close(s.jobs)
	wg.Wait()
	zlog.Logger.Info().Msg("scheduler stopped")
}

// Submit hands a single notification to the worker pool, bypassing the next
// poll. Used by the queue consumer for low-latency delivery; the claim lease
// makes overlap with polling safe.
func (s *Scheduler) Submit(ctx context.Context, n model.Notification) {
	select {
	case <-ctx.Done():
	case s.jobs <- n:
	}
}

// pollOnce fetches one batch of due notifications and feeds the pool.
// A store failure aborts the cycle; the next tick is the retry.
func (s *Scheduler) pollOnce(ctx context.Context) {
	due, err := s.store.FetchDue(ctx, time.Now(), s.cfg.BatchLimit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to fetch due notifications")
		return
	}

	for _, n := range due {
		select {
		case <-ctx.Done():
			return
		case s.jobs <- n:
		}
	}
}

// process runs one attempt cycle: claim, dispatch, decide, release.
func (s *Scheduler) process(ctx context.Context, n model.Notification) {
	claimed, err := s.store.Claim(ctx, n.ID, s.id, s.cfg.ClaimTTL)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("claim failed")
		return
	}

	if !claimed {
		// Another worker owns it; not an error, the next poll retries.
		return
	}

	defer func() {
		if err := s.store.Release(ctx, n.ID); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("release failed")
		}
	}()

	// Re-read after claiming: the notification may have been sent, cancelled
	// or rescheduled between fetch and claim.
	fresh, err := s.store.GetByID(ctx, n.ID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("reload failed")
		return
	}

	if !dispatchable(fresh) {
		return
	}

	channels, err := s.resolver.Resolve(ctx, fresh.UserID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", fresh.ID.String()).Msg("resolve channels failed")
		return
	}

	history, err := s.store.ListAttempts(ctx, fresh.ID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", fresh.ID.String()).Msg("list attempts failed")
		return
	}

	switch dec := s.policy.Decide(history, channels); dec.Action {
	case policy.ActionNone:
		// A recorded SENT attempt without the final status means a previous
		// cycle stopped between dispatch and bookkeeping; converge.
		s.setStatus(ctx, fresh.ID, model.StatusSent)
	case policy.ActionGiveUp:
		if len(history) == 0 {
			if err := s.dispatcher.RecordUndeliverable(ctx, fresh); err != nil {
				zlog.Logger.Error().Err(err).Str("notification_id", fresh.ID.String()).Msg("record undeliverable failed")
				return
			}
		}
		s.setStatus(ctx, fresh.ID, model.StatusGivenUp)
	default:
		s.dispatch(ctx, fresh, channels, history, dec.Channel)
	}
}

// dispatch performs one attempt and applies the follow-up decision.
func (s *Scheduler) dispatch(ctx context.Context, n model.Notification, channels []settings.Channel, history []model.DeliveryAttempt, ch settings.Channel) {
	number := len(history) + 1

	res, err := s.dispatcher.Attempt(ctx, n, ch, number)
	if err != nil {
		// Store failures and invariant violations; the latter indicate a
		// consistency bug and must be loud.
		zlog.Logger.Error().Err(err).
			Str("notification_id", n.ID.String()).
			Str("method", string(ch.Method)).
			Int("attempt", number).
			Msg("dispatch aborted")
		return
	}

	if res.Status == model.AttemptSent {
		zlog.Logger.Info().
			Str("notification_id", n.ID.String()).
			Str("method", string(ch.Method)).
			Int("attempt", number).
			Msg("notification delivered")
		s.setStatus(ctx, n.ID, model.StatusSent)
		return
	}

	zlog.Logger.Warn().
		Str("notification_id", n.ID.String()).
		Str("method", string(ch.Method)).
		Int("attempt", number).
		Str("reason", res.Reason).
		Msg("delivery attempt failed")

	failed := model.DeliveryAttempt{
		NotificationID: n.ID,
		Method:         ch.Method,
		Status:         model.AttemptFailed,
		AttemptNumber:  number,
		ErrorMessage:   res.Reason,
	}

	switch next := s.policy.Decide(append(history, failed), channels); next.Action {
	case policy.ActionGiveUp:
		s.setStatus(ctx, n.ID, model.StatusGivenUp)
	default:
		// Delayed work is re-enqueued for a future poll, never held on a
		// blocked worker.
		if err := s.store.ScheduleRetry(ctx, n.ID, time.Now().Add(next.Delay)); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("schedule retry failed")
			return
		}
		s.setStatus(ctx, n.ID, model.StatusRetry)
	}
}

func (s *Scheduler) setStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := s.status.SetStatus(ctx, s.cfg.Strategy, id, status); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msgf("failed to set status=%s", status)
	}
}

func dispatchable(n model.Notification) bool {
	if n.IsSent {
		return false
	}

	switch n.Status {
	case model.StatusCancelled, model.StatusGivenUp:
		return false
	}

	return !n.NextAttemptAt.After(time.Now())
}
