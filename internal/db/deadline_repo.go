package db

import (
	"context"
	"time"

	"lexflow/internal/types"
)

// DeadlineRepository provides data access for the deadlines table. The alert
// engine only reads deadlines and rewrites their cached alert_status; rows are
// created and completed by the surrounding application.
type DeadlineRepository struct {
	db DBTX
}

// NewDeadlineRepository creates a new DeadlineRepository backed by the given
// database connection (pool or transaction).
func NewDeadlineRepository(db DBTX) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

// ListOpen retrieves deadlines that have not been completed, ordered by due
// date so the most pressing obligations are processed first. The limit keeps
// a single run bounded; anything beyond it is picked up by the next trigger.
func (r *DeadlineRepository) ListOpen(ctx context.Context, limit int) ([]*types.Deadline, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, process_id, title, due_at, status, alert_status,
		        acknowledged_at, created_at, updated_at
		 FROM deadlines
		 WHERE status != 'completed'
		 ORDER BY due_at, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list open deadlines", err)
	}
	defer rows.Close()

	var results []*types.Deadline
	for rows.Next() {
		var (
			d              types.Deadline
			processID      *string
			acknowledgedAt *time.Time
		)
		if err := rows.Scan(&d.ID, &d.UserID, &processID, &d.Title, &d.DueAt,
			&d.Status, &d.AlertStatus, &acknowledgedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan deadline row", err)
		}
		if processID != nil {
			d.ProcessID = *processID
		}
		d.AcknowledgedAt = acknowledgedAt
		results = append(results, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating deadline rows", err)
	}

	return results, nil
}

// UpdateAlertStatus rewrites the cached alert_status field for a deadline.
// Only the engine calls this; a failed update is logged by the caller and
// healed on the next run (the label is recomputed from raw dates every time).
func (r *DeadlineRepository) UpdateAlertStatus(ctx context.Context, deadlineID string, status types.AlertStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE deadlines SET alert_status = $1, updated_at = NOW() WHERE id = $2`,
		string(status),
		deadlineID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update alert status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundDeadline, "deadline not found", nil)
	}
	return nil
}
