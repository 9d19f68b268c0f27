// Package alerts implements the deadline alert engine: classifying deadline
// urgency, planning reminders against user thresholds, claiming notification
// rows for at-most-once delivery, and sending email with a bounded
// retry-and-fallback discipline.
package alerts

import (
	"time"

	"lexflow/internal/types"
)

// DaysRemaining computes the signed number of calendar days between now and
// the due date, by calendar-day truncation rather than wall-clock hours. A
// deadline due later today is 0 days away no matter the hour; yesterday is -1.
// Both timestamps are truncated in the due date's location so a run close to
// midnight cannot flap the result.
func DaysRemaining(dueAt, now time.Time) int {
	loc := dueAt.Location()
	due := truncateToDay(dueAt.In(loc))
	today := truncateToDay(now.In(loc))
	return int(due.Sub(today) / (24 * time.Hour))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ClassifyDeadline maps a deadline to its urgency label. Completed deadlines
// are always done, regardless of due date. The label is a pure function of
// (due date, lifecycle status, now); callers persist it only when it diverges
// from the stored value.
func ClassifyDeadline(d *types.Deadline, now time.Time) types.AlertStatus {
	if d.Status == types.DeadlineCompleted {
		return types.AlertDone
	}

	switch days := DaysRemaining(d.DueAt, now); {
	case days < 0:
		return types.AlertOverdue
	case days <= 3:
		return types.AlertUrgent
	case days <= 7:
		return types.AlertActive
	default:
		return types.AlertOnTrack
	}
}
