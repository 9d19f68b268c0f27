package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/types"
)

// fakeDBTX records executed statements and plays back scripted results.
type fakeDBTX struct {
	execTag  pgconn.CommandTag
	execErr  error
	queryErr error
	rows     *fakeRows

	execSQL   []string
	execArgs  [][]any
	querySQL  []string
	queryArgs [][]any
}

func (f *fakeDBTX) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakeDBTX) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.querySQL = append(f.querySQL, sql)
	f.queryArgs = append(f.queryArgs, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		f.rows = &fakeRows{}
	}
	return f.rows, nil
}

func (f *fakeDBTX) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("QueryRow not used by NotificationRepository")
}

// fakeRows is a minimal pgx.Rows implementation backed by literal row values.
type fakeRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		if row[i] == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func tagAffecting(n int) pgconn.CommandTag {
	if n == 1 {
		return pgconn.NewCommandTag("UPDATE 1")
	}
	return pgconn.NewCommandTag("UPDATE 0")
}

func sampleNotification() *types.Notification {
	days := 3
	return &types.Notification{
		ID:            "ntf-1",
		UserID:        "user-1",
		Chan:          types.ChannelEmail,
		EntityType:    "deadline",
		EntityID:      "dl-1",
		Type:          "deadline_alert",
		Severity:      types.SeverityWarning,
		Title:         "Prazo em 3 dias",
		Message:       "Prazo vence em 3 dias: Recurso",
		DedupeKey:     types.EmailDedupeKey("dl-1", 3),
		DeadlineID:    "dl-1",
		DaysRemaining: &days,
	}
}

func TestClaim(t *testing.T) {
	t.Run("inserts and reports created", func(t *testing.T) {
		fake := &fakeDBTX{execTag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := NewNotificationRepository(fake)

		created, err := repo.Claim(context.Background(), sampleNotification())
		require.NoError(t, err)
		assert.True(t, created)

		require.Len(t, fake.execSQL, 1)
		assert.Contains(t, fake.execSQL[0], "ON CONFLICT (user_id, dedupe_key) DO NOTHING")
		assert.Equal(t, "ntf-1", fake.execArgs[0][0])
		assert.Equal(t, "user-1", fake.execArgs[0][1])
		assert.Equal(t, "deadline:dl-1:email:d3", fake.execArgs[0][9])
	})

	t.Run("existing key reports not created without error", func(t *testing.T) {
		fake := &fakeDBTX{execTag: pgconn.NewCommandTag("INSERT 0 0")}
		repo := NewNotificationRepository(fake)

		created, err := repo.Claim(context.Background(), sampleNotification())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("in-app rows carry no deadline linkage", func(t *testing.T) {
		fake := &fakeDBTX{execTag: pgconn.NewCommandTag("INSERT 0 1")}
		repo := NewNotificationRepository(fake)

		n := sampleNotification()
		n.Chan = types.ChannelInApp
		n.DeadlineID = ""
		n.DaysRemaining = nil

		_, err := repo.Claim(context.Background(), n)
		require.NoError(t, err)

		// Empty optional strings must reach the driver as NULL, not "".
		assert.Nil(t, fake.execArgs[0][10])
	})

	t.Run("exec failure maps to database error", func(t *testing.T) {
		fake := &fakeDBTX{execErr: errors.New("connection reset")}
		repo := NewNotificationRepository(fake)

		_, err := repo.Claim(context.Background(), sampleNotification())
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})
}

func TestMarkSent(t *testing.T) {
	t.Run("updates terminal state", func(t *testing.T) {
		fake := &fakeDBTX{execTag: tagAffecting(1)}
		repo := NewNotificationRepository(fake)

		require.NoError(t, repo.MarkSent(context.Background(), "ntf-1"))
		assert.Contains(t, fake.execSQL[0], "status = 'sent'")
		assert.Contains(t, fake.execSQL[0], "sent_at = NOW()")
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		fake := &fakeDBTX{execTag: tagAffecting(0)}
		repo := NewNotificationRepository(fake)

		err := repo.MarkSent(context.Background(), "missing")
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeNotFoundNotification, appErr.Code)
	})
}

func TestMarkFailed(t *testing.T) {
	fake := &fakeDBTX{execTag: tagAffecting(1)}
	repo := NewNotificationRepository(fake)

	require.NoError(t, repo.MarkFailed(context.Background(), "ntf-1", "mailbox unavailable"))

	// The failed transition must release the deadline linkage in the same
	// statement so there is no window with a failed row still holding it.
	sql := fake.execSQL[0]
	assert.Contains(t, sql, "status = 'failed'")
	assert.Contains(t, sql, "deadline_id = NULL")
	assert.Contains(t, sql, "days_remaining = NULL")
	assert.Equal(t, "mailbox unavailable", fake.execArgs[0][0])
}

func TestMarkRead(t *testing.T) {
	t.Run("scopes by owner", func(t *testing.T) {
		fake := &fakeDBTX{execTag: tagAffecting(1)}
		repo := NewNotificationRepository(fake)

		require.NoError(t, repo.MarkRead(context.Background(), "user-1", "ntf-1"))
		assert.Contains(t, fake.execSQL[0], "user_id = $2")
		assert.Contains(t, fake.execSQL[0], "read_at IS NULL")
		assert.Equal(t, []any{"ntf-1", "user-1"}, fake.execArgs[0])
	})

	t.Run("already read is not found", func(t *testing.T) {
		fake := &fakeDBTX{execTag: tagAffecting(0)}
		repo := NewNotificationRepository(fake)

		err := repo.MarkRead(context.Background(), "user-1", "ntf-1")
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeNotFoundNotification, appErr.Code)
	})
}

func TestListByUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-time.Hour)
	deadlineID := "dl-1"
	days := 3

	row := []any{
		"ntf-1", "user-1", "email", "deadline", "dl-1", "deadline_alert",
		"warning", "Prazo em 3 dias", "Prazo vence em 3 dias: Recurso",
		"deadline:dl-1:email:d3", "sent", &deadlineID, &days,
		&sent, nil, "", now,
	}

	t.Run("maps rows", func(t *testing.T) {
		fake := &fakeDBTX{rows: &fakeRows{data: [][]any{row}}}
		repo := NewNotificationRepository(fake)

		results, err := repo.ListByUser(context.Background(), "user-1", 20)
		require.NoError(t, err)
		require.Len(t, results, 1)

		n := results[0]
		assert.Equal(t, types.ChannelEmail, n.Chan)
		assert.Equal(t, types.SeverityWarning, n.Severity)
		assert.Equal(t, types.NotificationSent, n.Status)
		assert.Equal(t, "dl-1", n.DeadlineID)
		require.NotNil(t, n.DaysRemaining)
		assert.Equal(t, 3, *n.DaysRemaining)
		assert.Equal(t, &sent, n.SentAt)
		assert.Nil(t, n.ReadAt)

		assert.Equal(t, []any{"user-1", 20}, fake.queryArgs[0])
	})

	t.Run("clamps out-of-range limits", func(t *testing.T) {
		for _, limit := range []int{0, -1, 101} {
			fake := &fakeDBTX{rows: &fakeRows{}}
			repo := NewNotificationRepository(fake)

			_, err := repo.ListByUser(context.Background(), "user-1", limit)
			require.NoError(t, err)
			assert.Equal(t, 50, fake.queryArgs[0][1])
		}
	})

	t.Run("query failure maps to database error", func(t *testing.T) {
		fake := &fakeDBTX{queryErr: errors.New("broken pipe")}
		repo := NewNotificationRepository(fake)

		_, err := repo.ListByUser(context.Background(), "user-1", 10)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	})
}

func TestDeleteBefore(t *testing.T) {
	fake := &fakeDBTX{execTag: pgconn.NewCommandTag("DELETE 42")}
	repo := NewNotificationRepository(fake)

	cutoff := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := repo.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	assert.Equal(t, []any{cutoff}, fake.execArgs[0])
}
