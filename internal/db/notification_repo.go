package db

import (
	"context"
	"time"

	"lexflow/internal/types"
)

// NotificationRepository provides data access for the notifications table.
//
// The table carries UNIQUE (user_id, dedupe_key); Claim relies on that
// constraint as the engine's sole idempotency mechanism. The uniqueness check
// and the insert are one atomic statement, so concurrent runs (overlapping
// cron triggers, parallel workers) cannot both claim the same logical event.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Claim attempts to insert a pending notification row for the given dedupe
// key. Returns created=false when a row for (user_id, dedupe_key) already
// exists, the expected outcome of duplicate or concurrent runs, not an
// error. The caller must set ID and all payload fields before calling.
//
// The row is written before any email is attempted. A crash after claiming
// but before sending leaves the row pending forever rather than causing a
// duplicate send on the next run: at-most-once, never over-delivery.
func (r *NotificationRepository) Claim(ctx context.Context, n *types.Notification) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, user_id, channel, entity_type, entity_id, type, severity,
		  title, message, dedupe_key, status, deadline_id, days_remaining, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', $11, $12, NOW())
		 ON CONFLICT (user_id, dedupe_key) DO NOTHING`,
		n.ID,
		n.UserID,
		string(n.Chan),
		n.EntityType,
		n.EntityID,
		n.Type,
		string(n.Severity),
		n.Title,
		n.Message,
		n.DedupeKey,
		nilIfEmpty(n.DeadlineID),
		n.DaysRemaining,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim notification", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkSent transitions a notification to the sent terminal state.
func (r *NotificationRepository) MarkSent(ctx context.Context, notificationID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = 'sent', sent_at = NOW(), error_message = NULL
		 WHERE id = $1`,
		notificationID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// MarkFailed transitions a notification to the failed terminal state and, in
// the same statement, clears the deadline linkage fields. Releasing the
// linkage lets a future run claim a fresh key combination if the user's
// settings imply a different rule, while the identical rule+threshold stays
// claimed and is never retried automatically.
func (r *NotificationRepository) MarkFailed(ctx context.Context, notificationID string, errorMessage string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET
			status = 'failed',
			error_message = $1,
			deadline_id = NULL,
			days_remaining = NULL
		 WHERE id = $2`,
		errorMessage,
		notificationID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification failed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// MarkRead records that the owner opened an in-app notification. Scoped by
// user id so one user cannot mark another's rows.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = 'read', read_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found or already read", nil)
	}
	return nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*types.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, channel, entity_type, entity_id, type, severity,
		        title, message, dedupe_key, status, deadline_id, days_remaining,
		        sent_at, read_at, COALESCE(error_message, ''), created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notifications", err)
	}
	defer rows.Close()

	var results []*types.Notification
	for rows.Next() {
		var (
			n          types.Notification
			channel    string
			severity   string
			status     string
			deadlineID *string
			sentAt     *time.Time
			readAt     *time.Time
		)
		if err := rows.Scan(&n.ID, &n.UserID, &channel, &n.EntityType, &n.EntityID,
			&n.Type, &severity, &n.Title, &n.Message, &n.DedupeKey, &status,
			&deadlineID, &n.DaysRemaining, &sentAt, &readAt, &n.ErrorMessage,
			&n.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		n.Chan = types.Channel(channel)
		n.Severity = types.Severity(severity)
		n.Status = types.NotificationStatus(status)
		if deadlineID != nil {
			n.DeadlineID = *deadlineID
		}
		n.SentAt = sentAt
		n.ReadAt = readAt
		results = append(results, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}

	return results, nil
}

// DeleteBefore hard-deletes notifications older than the cutoff time. Used by
// the retention cleanup task. Returns the count of deleted records.
func (r *NotificationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old notifications", err)
	}
	return tag.RowsAffected(), nil
}

// nilIfEmpty converts an empty string to a NULL-able nil for optional columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
