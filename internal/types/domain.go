package types

import (
	"fmt"
	"time"
)

// DeadlineStatus is the user-controlled lifecycle state of a deadline.
type DeadlineStatus string

const (
	DeadlinePending   DeadlineStatus = "pending"
	DeadlineCompleted DeadlineStatus = "completed"
)

// AlertStatus is the derived urgency label cached on a deadline. It is a pure
// function of (due date, lifecycle status, current date); the engine rewrites
// it when the computed label diverges from the stored one. Reminder delivery
// never reads this cache; it is a presentation field for the surrounding app.
type AlertStatus string

const (
	AlertOnTrack AlertStatus = "on_track"
	AlertActive  AlertStatus = "active"
	AlertUrgent  AlertStatus = "urgent"
	AlertOverdue AlertStatus = "overdue"
	AlertDone    AlertStatus = "done"
)

// Severity grades an alert plan for display and email styling.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// NotificationStatus is the delivery lifecycle state of a notification row.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationRead    NotificationStatus = "read"
)

// Deadline is a legal obligation with a due date, owned by a user and
// optionally linked to a judicial process. Created by user action; the engine
// only ever rewrites AlertStatus and never deletes rows.
type Deadline struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	ProcessID string `json:"process_id,omitempty" db:"process_id"`

	Title string    `json:"title" db:"title"`
	DueAt time.Time `json:"due_at" db:"due_at"`

	Status      DeadlineStatus `json:"status" db:"status"`
	AlertStatus AlertStatus    `json:"alert_status" db:"alert_status"`

	// AcknowledgedAt is set only by an explicit "confirm awareness" user
	// action in the surrounding application.
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAcknowledged reports whether the owner has confirmed awareness.
func (d *Deadline) IsAcknowledged() bool {
	return d.AcknowledgedAt != nil
}

// NotificationPreference holds a user's reminder settings. Address fields are
// validated at the UI boundary; the engine treats them as opaque strings that
// are either empty or syntactically valid.
type NotificationPreference struct {
	UserID       string `json:"user_id" db:"user_id"`
	EmailEnabled bool   `json:"email_enabled" db:"email_enabled"`

	// ThresholdDays is the ordered set of days-before-due at which reminders
	// fire. Matching is by exact equality against days remaining; the default
	// set {7,3,1,0} contains no negative values, so overdue deadlines do not
	// re-trigger past day 0.
	ThresholdDays []int `json:"threshold_days" db:"threshold_days"`

	// EmailOverride, when set, replaces the account email as the primary
	// delivery address. FallbackEmail is attempted once after the primary
	// address fails terminally.
	EmailOverride string `json:"email_override,omitempty" db:"email_override"`
	FallbackEmail string `json:"fallback_email,omitempty" db:"fallback_email"`

	// AccountEmail is hydrated from the users table by the read-through
	// lookup; it is not a column of notification_preferences.
	AccountEmail string `json:"-" db:"-"`
}

// DefaultThresholdDays is the reminder schedule applied when a user has no
// stored preference row.
var DefaultThresholdDays = []int{7, 3, 1, 0}

// DefaultPreference returns the engine-wide default preference for a user
// with no stored row. Email stays disabled until the user opts in.
func DefaultPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:        userID,
		EmailEnabled:  false,
		ThresholdDays: append([]int(nil), DefaultThresholdDays...),
	}
}

// ResolvedAddress returns the primary delivery address: the override if set,
// otherwise the account email.
func (p NotificationPreference) ResolvedAddress() string {
	if p.EmailOverride != "" {
		return p.EmailOverride
	}
	return p.AccountEmail
}

// AlertPlan is an ephemeral intent-to-notify computed per run. It is never
// persisted as its own row; it is the input to the NotificationRecorder.
type AlertPlan struct {
	UserID     string
	DeadlineID string
	ProcessID  string

	// Rule identifies which threshold matched, e.g. "due_in_3d" or "due_today".
	Rule          string
	DaysRemaining int
	Severity      Severity

	Title   string
	Message string

	// Deterministic dedupe keys, one per channel. The same logical event
	// always produces the same keys regardless of how often the run executes.
	InAppDedupeKey string
	EmailDedupeKey string
}

// InAppDedupeKey builds the deterministic in-app channel key for a deadline
// and rule identifier.
func InAppDedupeKey(deadlineID, rule string) string {
	return fmt.Sprintf("deadline:%s:rule:%s", deadlineID, rule)
}

// EmailDedupeKey builds the deterministic email channel key for a deadline
// and signed days-remaining value.
func EmailDedupeKey(deadlineID string, daysRemaining int) string {
	return fmt.Sprintf("deadline:%s:email:d%d", deadlineID, daysRemaining)
}

// Notification is a persisted delivery record. The UNIQUE (user_id,
// dedupe_key) constraint on its table is the engine's sole idempotency
// mechanism: inserting the row ("claiming") must happen before any email is
// attempted, so a crash mid-send can under-deliver but never over-deliver.
type Notification struct {
	ID     string  `json:"id" db:"id"`
	UserID string  `json:"user_id" db:"user_id"`
	Chan   Channel `json:"channel" db:"channel"`

	// EntityType/EntityID link the notification to its subject record.
	// The alert engine always writes entity_type='deadline'.
	EntityType string `json:"entity_type" db:"entity_type"`
	EntityID   string `json:"entity_id" db:"entity_id"`

	Type     string   `json:"type" db:"type"`
	Severity Severity `json:"severity" db:"severity"`
	Title    string   `json:"title" db:"title"`
	Message  string   `json:"message" db:"message"`

	DedupeKey string             `json:"dedupe_key" db:"dedupe_key"`
	Status    NotificationStatus `json:"status" db:"status"`

	// DeadlineID and DaysRemaining are populated only while an email send is
	// outstanding; a terminal failure clears both in the same update so a
	// future run may claim a fresh key combination under different settings.
	DeadlineID    string `json:"deadline_id,omitempty" db:"deadline_id"`
	DaysRemaining *int   `json:"days_remaining,omitempty" db:"days_remaining"`

	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ReadAt       *time.Time `json:"read_at,omitempty" db:"read_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsRead reports whether the owner has opened the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// SendInput defines the contract for email transmission. Content is
// pre-rendered; providers transmit it verbatim.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}
