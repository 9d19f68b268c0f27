package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lexflow/internal/types"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return ts
}

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		name  string
		dueAt string
		now   string
		want  int
	}{
		{"due later today counts as zero", "2026-03-10T23:00:00Z", "2026-03-10T08:00:00Z", 0},
		{"due earlier today still counts as zero", "2026-03-10T01:00:00Z", "2026-03-10T23:30:00Z", 0},
		{"due tomorrow just past midnight", "2026-03-11T00:05:00Z", "2026-03-10T23:59:00Z", 1},
		{"due in seven days", "2026-03-17T12:00:00Z", "2026-03-10T09:00:00Z", 7},
		{"overdue yesterday", "2026-03-09T23:59:00Z", "2026-03-10T00:01:00Z", -1},
		{"overdue five days", "2026-03-05T12:00:00Z", "2026-03-10T12:00:00Z", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DaysRemaining(mustTime(t, tt.dueAt), mustTime(t, tt.now))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyDeadline(t *testing.T) {
	now := mustTime(t, "2026-03-10T12:00:00Z")

	tests := []struct {
		name   string
		status types.DeadlineStatus
		dueAt  string
		want   types.AlertStatus
	}{
		{"completed is always done", types.DeadlineCompleted, "2020-01-01T00:00:00Z", types.AlertDone},
		{"overdue", types.DeadlinePending, "2026-03-08T00:00:00Z", types.AlertOverdue},
		{"due today is urgent", types.DeadlinePending, "2026-03-10T18:00:00Z", types.AlertUrgent},
		{"three days out is urgent", types.DeadlinePending, "2026-03-13T12:00:00Z", types.AlertUrgent},
		{"four days out is active", types.DeadlinePending, "2026-03-14T12:00:00Z", types.AlertActive},
		{"seven days out is active", types.DeadlinePending, "2026-03-17T12:00:00Z", types.AlertActive},
		{"eight days out is on track", types.DeadlinePending, "2026-03-18T12:00:00Z", types.AlertOnTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &types.Deadline{Status: tt.status, DueAt: mustTime(t, tt.dueAt)}
			assert.Equal(t, tt.want, ClassifyDeadline(d, now))
		})
	}
}
