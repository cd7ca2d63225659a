package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/notifyhub/dispatcher/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAttemptNotFound      = errors.New("delivery attempt not found")
)

// Repository provides access to the notifications and delivery_attempts
// tables. It is the single source of truth for the delivery engine; all
// state transitions go through it.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification and returns its ID. The first attempt
// becomes due at scheduled_for.
func (r *Repository) Create(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    user_id, title, message, type, status, scheduled_for, next_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query, n.UserID, n.Title, n.Message, n.Type, n.Status, n.ScheduledFor,
	).Scan(&n.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n.ID, nil
}

// GetByID retrieves a single notification.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, status, is_sent,
		       scheduled_for, next_attempt_at, created_at, updated_at
		FROM notifications
		WHERE id = $1;
    `

	var n model.Notification
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Status, &n.IsSent,
		&n.ScheduledFor, &n.NextAttemptAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// GetStatusByID retrieves only the status of a notification.
func (r *Repository) GetStatusByID(ctx context.Context, id uuid.UUID) (string, error) {
	query := `
		SELECT status
		FROM notifications
		WHERE id = $1;
    `

	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotificationNotFound
		}

		return "", fmt.Errorf("failed to get notification status: %w", err)
	}

	return status, nil
}

// GetAll retrieves all notifications ordered by creation time descending.
func (r *Repository) GetAll(ctx context.Context) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, status, is_sent,
		       scheduled_for, next_attempt_at, created_at, updated_at
		FROM notifications
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Status, &n.IsSent,
			&n.ScheduledFor, &n.NextAttemptAt, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// UpdateStatus updates the status of a notification by its ID.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// FetchDue returns notifications whose next attempt is due and which are
// neither sent, cancelled nor given up.
func (r *Repository) FetchDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, status, is_sent,
		       scheduled_for, next_attempt_at, created_at, updated_at
		FROM notifications
		WHERE next_attempt_at <= $1
		  AND is_sent = false
		  AND status IN ('pending', 'retry')
		ORDER BY next_attempt_at
		LIMIT $2;
    `

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due notifications: %w", err)
	}
	defer rows.Close()

	var due []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Status, &n.IsSent,
			&n.ScheduledFor, &n.NextAttemptAt, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, err
		}

		due = append(due, n)
	}

	return due, rows.Err()
}

// Claim takes an exclusive, time-bounded lease on a notification so only
// one worker dispatches it at a time. Returns false without error when the
// notification is already claimed, sent or no longer dispatchable.
func (r *Repository) Claim(ctx context.Context, id, owner uuid.UUID, ttl time.Duration) (bool, error) {
	query := `
		UPDATE notifications
		SET claimed_by = $1, claimed_until = now() + $2::interval
		WHERE id = $3
		  AND is_sent = false
		  AND status IN ('pending', 'retry')
		  AND (claimed_until IS NULL OR claimed_until < now());
    `

	res, err := r.db.ExecContext(ctx, query, owner, fmt.Sprintf("%f seconds", ttl.Seconds()), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return rows == 1, nil
}

// Release drops the claim lease.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET claimed_by = NULL, claimed_until = NULL
		WHERE id = $1;
    `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release notification: %w", err)
	}

	return nil
}

// ScheduleRetry moves the next attempt time forward.
func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET next_attempt_at = $1, updated_at = now()
		WHERE id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkSent flips the sent flag. The flag is monotonic: once set it is never
// cleared, and repeated calls are no-ops.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET is_sent = true, status = 'sent', updated_at = $1
		WHERE id = $2 AND is_sent = false;
    `

	if _, err := r.db.ExecContext(ctx, query, sentAt, id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	return nil
}

// CountAttempts returns how many delivery attempts exist for a notification.
func (r *Repository) CountAttempts(ctx context.Context, notificationID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM delivery_attempts
		WHERE notification_id = $1;
    `

	var count int
	if err := r.db.QueryRowContext(ctx, query, notificationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	return count, nil
}

// CreateAttempt appends a delivery attempt. The unique index on
// (notification_id, attempt_number) keeps the sequence contiguous even under
// concurrent writers.
func (r *Repository) CreateAttempt(ctx context.Context, a model.DeliveryAttempt) (uuid.UUID, error) {
	query := `
		INSERT INTO delivery_attempts (
		    notification_id, method, status, attempt_number, error_message
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query, a.NotificationID, a.Method, a.Status, a.AttemptNumber, a.ErrorMessage,
	).Scan(&a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create delivery attempt: %w", err)
	}

	return a.ID, nil
}

// MarkAttemptSent finalizes an attempt as SENT.
func (r *Repository) MarkAttemptSent(ctx context.Context, attemptID uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE delivery_attempts
		SET status = 'SENT', sent_at = $1
		WHERE id = $2 AND status = 'PENDING';
    `

	res, err := r.db.ExecContext(ctx, query, sentAt, attemptID)
	if err != nil {
		return fmt.Errorf("failed to mark attempt sent: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrAttemptNotFound
	}

	return nil
}

// MarkAttemptFailed finalizes an attempt as FAILED with a reason.
func (r *Repository) MarkAttemptFailed(ctx context.Context, attemptID uuid.UUID, reason string) error {
	query := `
		UPDATE delivery_attempts
		SET status = 'FAILED', error_message = $1
		WHERE id = $2 AND status = 'PENDING';
    `

	res, err := r.db.ExecContext(ctx, query, reason, attemptID)
	if err != nil {
		return fmt.Errorf("failed to mark attempt failed: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrAttemptNotFound
	}

	return nil
}

// ListAttempts returns the full attempt history ordered by attempt number.
func (r *Repository) ListAttempts(ctx context.Context, notificationID uuid.UUID) ([]model.DeliveryAttempt, error) {
	query := `
		SELECT id, notification_id, method, status, attempt_number,
		       sent_at, error_message, created_at
		FROM delivery_attempts
		WHERE notification_id = $1
		ORDER BY attempt_number;
    `

	rows, err := r.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.DeliveryAttempt
	for rows.Next() {
		var a model.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.NotificationID, &a.Method, &a.Status, &a.AttemptNumber,
			&a.SentAt, &a.ErrorMessage, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}
