package alerts

import (
	"fmt"
	"time"

	"lexflow/internal/types"
)

// BuildPlans produces zero or more alert plans for a deadline, one per
// threshold in the owner's preference set that equals the current days
// remaining. Matching is by exact equality, not "<=": a daily run therefore
// produces at most one plan per threshold over the deadline's lifetime.
//
// Overdue deadlines (negative days remaining) match only if the preference
// set explicitly contains negative thresholds. The default set {7,3,1,0} does
// not, so reminders stop firing past day 0. That cut-off is an anti-spam
// policy and must survive refactors.
func BuildPlans(d *types.Deadline, now time.Time, pref types.NotificationPreference) []types.AlertPlan {
	if d.Status == types.DeadlineCompleted {
		return nil
	}

	days := DaysRemaining(d.DueAt, now)

	var plans []types.AlertPlan
	for _, t := range pref.ThresholdDays {
		if days != t {
			continue
		}
		rule := ruleName(t)
		plans = append(plans, types.AlertPlan{
			UserID:         d.UserID,
			DeadlineID:     d.ID,
			ProcessID:      d.ProcessID,
			Rule:           rule,
			DaysRemaining:  days,
			Severity:       severityFor(t),
			Title:          planTitle(d, t),
			Message:        planMessage(d, t),
			InAppDedupeKey: types.InAppDedupeKey(d.ID, rule),
			EmailDedupeKey: types.EmailDedupeKey(d.ID, days),
		})
	}

	return plans
}

// ruleName identifies which threshold matched, e.g. "due_in_7d", "due_today"
// or "overdue_2d". Rule names feed the in-app dedupe key, so they must stay
// stable across releases.
func ruleName(threshold int) string {
	switch {
	case threshold == 0:
		return "due_today"
	case threshold < 0:
		return fmt.Sprintf("overdue_%dd", -threshold)
	default:
		return fmt.Sprintf("due_in_%dd", threshold)
	}
}

func severityFor(threshold int) types.Severity {
	switch {
	case threshold <= 0:
		return types.SeverityDanger
	case threshold == 1:
		return types.SeverityWarning
	default:
		return types.SeverityInfo
	}
}

func planTitle(d *types.Deadline, threshold int) string {
	switch {
	case threshold == 0:
		return fmt.Sprintf("Prazo vence hoje: %s", d.Title)
	case threshold < 0:
		return fmt.Sprintf("Prazo vencido há %d dia(s): %s", -threshold, d.Title)
	case threshold == 1:
		return fmt.Sprintf("Prazo vence amanhã: %s", d.Title)
	default:
		return fmt.Sprintf("Prazo vence em %d dias: %s", threshold, d.Title)
	}
}

func planMessage(d *types.Deadline, threshold int) string {
	due := d.DueAt.Format("02/01/2006")
	switch {
	case threshold == 0:
		return fmt.Sprintf("O prazo %q vence hoje (%s). Verifique as providências necessárias.", d.Title, due)
	case threshold < 0:
		return fmt.Sprintf("O prazo %q venceu em %s e ainda não foi concluído.", d.Title, due)
	default:
		return fmt.Sprintf("O prazo %q vence em %s. Faltam %d dia(s).", d.Title, due, threshold)
	}
}
