package db

import (
	"context"

	"lexflow/internal/types"
)

// PreferenceRepository provides read-through access to notification
// preferences, joined with the owning user's account email so callers get a
// fully resolved value in one query instead of stitching maps together per
// run.
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a new PreferenceRepository backed by the
// given database connection (pool or transaction).
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetByUserID returns the user's notification preference with AccountEmail
// hydrated from the users table. When the user has no preference row the
// engine-wide default is returned with found=false; callers never see a nil
// or partially populated preference.
func (r *PreferenceRepository) GetByUserID(ctx context.Context, userID string) (types.NotificationPreference, bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT u.email,
		        p.user_id IS NOT NULL,
		        COALESCE(p.email_enabled, FALSE),
		        COALESCE(p.threshold_days, '{}'::int[]),
		        COALESCE(p.email_override, ''),
		        COALESCE(p.fallback_email, '')
		 FROM users u
		 LEFT JOIN notification_preferences p ON p.user_id = u.id
		 WHERE u.id = $1`,
		userID,
	)

	var (
		pref       types.NotificationPreference
		hasRow     bool
		thresholds []int
	)
	if err := row.Scan(&pref.AccountEmail, &hasRow, &pref.EmailEnabled,
		&thresholds, &pref.EmailOverride, &pref.FallbackEmail); err != nil {
		return types.NotificationPreference{}, false, types.NewAppError(types.ErrCodeInternalDB, "failed to read notification preference", err)
	}

	pref.UserID = userID
	pref.ThresholdDays = thresholds

	if !hasRow {
		def := types.DefaultPreference(userID)
		def.AccountEmail = pref.AccountEmail
		return def, false, nil
	}

	return pref, true, nil
}

// Upsert writes a user's notification preference. Exposed for the settings
// surface of the surrounding application; the engine itself only reads.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *types.NotificationPreference) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_preferences
		 (user_id, email_enabled, threshold_days, email_override, fallback_email, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			threshold_days = EXCLUDED.threshold_days,
			email_override = EXCLUDED.email_override,
			fallback_email = EXCLUDED.fallback_email,
			updated_at = NOW()`,
		pref.UserID,
		pref.EmailEnabled,
		pref.ThresholdDays,
		pref.EmailOverride,
		pref.FallbackEmail,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert notification preference", err)
	}
	return nil
}
