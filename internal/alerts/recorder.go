package alerts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"lexflow/internal/types"
)

// NotificationStore is the minimal persistence interface the recorder needs.
// A subset of db.NotificationRepository, kept narrow so the recorder is
// testable with lightweight fakes.
type NotificationStore interface {
	// Claim performs the atomic claim-or-skip insert. Returns created=false
	// when the (user_id, dedupe_key) pair is already taken.
	Claim(ctx context.Context, n *types.Notification) (bool, error)

	// MarkSent transitions a notification to the sent terminal state.
	MarkSent(ctx context.Context, notificationID string) error

	// MarkFailed transitions a notification to the failed terminal state and
	// clears the deadline linkage in the same statement.
	MarkFailed(ctx context.Context, notificationID string, errorMessage string) error
}

// Recorder turns alert plans into persisted notification rows, using the
// store's claim semantics to guarantee at-most-once handling per dedupe key.
// The claim happens before any email attempt; only the claimer may deliver.
type Recorder struct {
	store  NotificationStore
	logger types.Logger
}

// NewRecorder creates a Recorder with the given store and logger.
func NewRecorder(store NotificationStore, logger types.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// ClaimInApp records the in-app notification for a plan. In-app rows are
// terminal at creation: there is no delivery step, so a successful claim is
// immediately marked sent.
func (r *Recorder) ClaimInApp(ctx context.Context, plan types.AlertPlan) (bool, string, error) {
	n := notificationFromPlan(plan, types.ChannelInApp, plan.InAppDedupeKey)

	created, err := r.store.Claim(ctx, n)
	if err != nil {
		return false, "", fmt.Errorf("ClaimInApp: %w", err)
	}
	if !created {
		return false, "", nil
	}

	if err := r.store.MarkSent(ctx, n.ID); err != nil {
		return true, n.ID, fmt.Errorf("ClaimInApp: %w", err)
	}

	r.logger.Info("in-app notification created",
		"notification_id", n.ID,
		"user_id", plan.UserID,
		"deadline_id", plan.DeadlineID,
		"rule", plan.Rule,
	)

	return true, n.ID, nil
}

// ClaimEmail records the pending email notification for a plan. The returned
// ID is used to mark the row sent or failed after delivery is attempted.
func (r *Recorder) ClaimEmail(ctx context.Context, plan types.AlertPlan) (bool, string, error) {
	n := notificationFromPlan(plan, types.ChannelEmail, plan.EmailDedupeKey)
	n.DeadlineID = plan.DeadlineID
	days := plan.DaysRemaining
	n.DaysRemaining = &days

	created, err := r.store.Claim(ctx, n)
	if err != nil {
		return false, "", fmt.Errorf("ClaimEmail: %w", err)
	}
	return created, n.ID, nil
}

// MarkSent finalizes a claimed email notification after successful delivery.
func (r *Recorder) MarkSent(ctx context.Context, notificationID string) error {
	if err := r.store.MarkSent(ctx, notificationID); err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

// MarkFailed finalizes a claimed email notification after terminal delivery
// failure. The store clears the deadline linkage in the same update, which
// releases the key combination for future runs under different settings.
func (r *Recorder) MarkFailed(ctx context.Context, notificationID string, errorMessage string) error {
	if err := r.store.MarkFailed(ctx, notificationID, errorMessage); err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func notificationFromPlan(plan types.AlertPlan, ch types.Channel, dedupeKey string) *types.Notification {
	return &types.Notification{
		ID:         uuid.NewString(),
		UserID:     plan.UserID,
		Chan:       ch,
		EntityType: "deadline",
		EntityID:   plan.DeadlineID,
		Type:       "deadline_alert",
		Severity:   plan.Severity,
		Title:      plan.Title,
		Message:    plan.Message,
		DedupeKey:  dedupeKey,
		Status:     types.NotificationPending,
	}
}
