package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/types"
)

// fakeStore implements NotificationStore in memory, keyed the same way the
// database constraint is: (user_id, dedupe_key).
type fakeStore struct {
	claimed  map[string]*types.Notification
	sent     []string
	failed   map[string]string
	claimErr error
	markErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		claimed: make(map[string]*types.Notification),
		failed:  make(map[string]string),
	}
}

func (s *fakeStore) Claim(_ context.Context, n *types.Notification) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	key := n.UserID + "|" + n.DedupeKey
	if _, exists := s.claimed[key]; exists {
		return false, nil
	}
	s.claimed[key] = n
	return true, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, msg string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.failed[id] = msg
	return nil
}

func recorderPlan() types.AlertPlan {
	return types.AlertPlan{
		UserID:         "user-1",
		DeadlineID:     "dl-1",
		Rule:           "due_in_3d",
		DaysRemaining:  3,
		Severity:       types.SeverityInfo,
		Title:          "Prazo vence em 3 dias: Contestação",
		Message:        "mensagem",
		InAppDedupeKey: "deadline:dl-1:rule:due_in_3d",
		EmailDedupeKey: "deadline:dl-1:email:d3",
	}
}

func TestClaimInAppCreatesAndMarksSent(t *testing.T) {
	store := newFakeStore()
	r := NewRecorder(store, &fakeLogger{})

	created, id, err := r.ClaimInApp(context.Background(), recorderPlan())

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	// In-app rows have no delivery step and go straight to sent.
	assert.Equal(t, []string{id}, store.sent)

	n := store.claimed["user-1|deadline:dl-1:rule:due_in_3d"]
	require.NotNil(t, n)
	assert.Equal(t, types.ChannelInApp, n.Chan)
	assert.Equal(t, "deadline", n.EntityType)
	assert.Equal(t, "dl-1", n.EntityID)
	// In-app rows carry no email linkage fields.
	assert.Empty(t, n.DeadlineID)
	assert.Nil(t, n.DaysRemaining)
}

func TestClaimInAppDuplicateIsNoop(t *testing.T) {
	store := newFakeStore()
	r := NewRecorder(store, &fakeLogger{})

	created, _, err := r.ClaimInApp(context.Background(), recorderPlan())
	require.NoError(t, err)
	require.True(t, created)

	created, id, err := r.ClaimInApp(context.Background(), recorderPlan())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, id)
	assert.Len(t, store.sent, 1)
}

func TestClaimEmailCarriesLinkage(t *testing.T) {
	store := newFakeStore()
	r := NewRecorder(store, &fakeLogger{})

	created, id, err := r.ClaimEmail(context.Background(), recorderPlan())

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	n := store.claimed["user-1|deadline:dl-1:email:d3"]
	require.NotNil(t, n)
	assert.Equal(t, types.ChannelEmail, n.Chan)
	assert.Equal(t, "dl-1", n.DeadlineID)
	require.NotNil(t, n.DaysRemaining)
	assert.Equal(t, 3, *n.DaysRemaining)
	// Pending until the sender reports a terminal outcome.
	assert.Empty(t, store.sent)
}

func TestClaimEmailDuplicateReturnsFalse(t *testing.T) {
	store := newFakeStore()
	r := NewRecorder(store, &fakeLogger{})

	created, _, err := r.ClaimEmail(context.Background(), recorderPlan())
	require.NoError(t, err)
	require.True(t, created)

	created, _, err = r.ClaimEmail(context.Background(), recorderPlan())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestClaimPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("connection refused")
	r := NewRecorder(store, &fakeLogger{})

	_, _, err := r.ClaimEmail(context.Background(), recorderPlan())
	assert.Error(t, err)
}
