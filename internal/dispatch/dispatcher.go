// Package dispatch performs single delivery attempts and records their
// outcome. Ordinary send failures are data for the retry policy, not errors.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/policy"
	"github.com/notifyhub/dispatcher/internal/settings"
)

var (
	// ErrAlreadySent means the notification's sent flag is already set;
	// dispatching it again would duplicate a delivery.
	ErrAlreadySent = errors.New("notification already sent")

	// ErrAttemptConflict means the caller's attempt number does not match
	// the stored history. This is a consistency bug, not a transient
	// condition, and aborts the dispatch.
	ErrAttemptConflict = errors.New("attempt number conflicts with stored history")
)

// Sender is the capability contract every channel transport satisfies.
// Implementations must report timeouts as a failure with reason "timeout"
// rather than leaving partial-send ambiguity.
type Sender interface {
	Send(to, title, message string) error
}

type attemptStore interface {
	CountAttempts(ctx context.Context, notificationID uuid.UUID) (int, error)
	CreateAttempt(ctx context.Context, attempt model.DeliveryAttempt) (uuid.UUID, error)
	MarkAttemptSent(ctx context.Context, attemptID uuid.UUID, sentAt time.Time) error
	MarkAttemptFailed(ctx context.Context, attemptID uuid.UUID, reason string) error
	MarkSent(ctx context.Context, notificationID uuid.UUID, sentAt time.Time) error
}

// Result is the outcome of one attempt, fed into the retry policy.
type Result struct {
	AttemptID uuid.UUID
	Status    model.AttemptStatus // SENT or FAILED
	Reason    string              // failure reason, empty on success
}

// Dispatcher executes one delivery attempt per call against the registered
// channel senders.
type Dispatcher struct {
	store   attemptStore
	senders map[model.DeliveryMethod]Sender
}

func New(store attemptStore, senders map[model.DeliveryMethod]Sender) *Dispatcher {
	return &Dispatcher{store: store, senders: senders}
}

// Attempt performs delivery attempt number for the notification over the
// given channel.
//
// It creates a PENDING attempt row, invokes the sender, and finalizes the
// row as SENT or FAILED exactly once; no attempt is left PENDING when this
// returns, whether the sender succeeds, fails or panics. On success the
// notification's sent flag is set. A non-nil error is returned only for
// store failures and invariant violations, never for ordinary send failures.
func (d *Dispatcher) Attempt(ctx context.Context, n model.Notification, ch settings.Channel, number int) (Result, error) {
	if n.IsSent {
		return Result{}, ErrAlreadySent
	}

	count, err := d.store.CountAttempts(ctx, n.ID)
	if err != nil {
		return Result{}, fmt.Errorf("count attempts for %s: %w", n.ID, err)
	}

	if number != count+1 {
		return Result{}, fmt.Errorf("%w: got %d, expected %d", ErrAttemptConflict, number, count+1)
	}

	attemptID, err := d.store.CreateAttempt(ctx, model.DeliveryAttempt{
		NotificationID: n.ID,
		Method:         ch.Method,
		Status:         model.AttemptPending,
		AttemptNumber:  number,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create attempt %d for %s: %w", number, n.ID, err)
	}

	// The transport may deliver even when ctx is cancelled mid-send (a
	// shutdown signal, for instance). Finalization must still land, or the
	// attempt stays PENDING and the next startup re-dispatches a message the
	// user already received.
	finCtx := context.WithoutCancel(ctx)

	if reason, ok := d.send(n, ch); !ok {
		if err := d.store.MarkAttemptFailed(finCtx, attemptID, reason); err != nil {
			return Result{}, fmt.Errorf("mark attempt %s failed: %w", attemptID, err)
		}

		return Result{AttemptID: attemptID, Status: model.AttemptFailed, Reason: reason}, nil
	}

	sentAt := time.Now()
	if err := d.store.MarkAttemptSent(finCtx, attemptID, sentAt); err != nil {
		return Result{}, fmt.Errorf("mark attempt %s sent: %w", attemptID, err)
	}

	if err := d.store.MarkSent(finCtx, n.ID, sentAt); err != nil {
		return Result{}, fmt.Errorf("mark notification %s sent: %w", n.ID, err)
	}

	return Result{AttemptID: attemptID, Status: model.AttemptSent}, nil
}

// RecordUndeliverable writes the distinguished FAILED attempt for a
// notification whose user has no usable channel at all.
func (d *Dispatcher) RecordUndeliverable(ctx context.Context, n model.Notification) error {
	attemptID, err := d.store.CreateAttempt(ctx, model.DeliveryAttempt{
		NotificationID: n.ID,
		Status:         model.AttemptPending,
		AttemptNumber:  1,
	})
	if err != nil {
		return fmt.Errorf("create undeliverable attempt for %s: %w", n.ID, err)
	}

	if err := d.store.MarkAttemptFailed(ctx, attemptID, policy.ReasonNoUsableChannel); err != nil {
		return fmt.Errorf("mark attempt %s failed: %w", attemptID, err)
	}

	return nil
}

// send runs the channel sender, converting panics into a generic failure so
// a misbehaving transport cannot take the worker down or leave the attempt
// PENDING.
func (d *Dispatcher) send(n model.Notification, ch settings.Channel) (reason string, ok bool) {
	sender, registered := d.senders[ch.Method]
	if !registered {
		return fmt.Sprintf("no sender registered for %s", ch.Method), false
	}

	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().
				Interface("panic", r).
				Str("notification_id", n.ID.String()).
				Str("method", string(ch.Method)).
				Msg("sender panicked")
			reason = "internal error"
			ok = false
		}
	}()

	if err := sender.Send(ch.Destination, n.Title, n.Message); err != nil {
		return err.Error(), false
	}

	return "", true
}
