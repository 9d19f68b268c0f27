package alerts

// IsEligible decides whether a plan qualifies for an email send. Pure and
// side-effect free.
//
// The threshold membership check defends against a plan built from a stale or
// partial preference read: even if a plan exists for some days-remaining
// value, email goes out only when that value is literally present in the
// owner's configured set.
func IsEligible(emailEnabled bool, configuredThresholds []int, daysRemaining int, resolvedTo string) bool {
	if !emailEnabled {
		return false
	}
	if resolvedTo == "" {
		return false
	}
	for _, t := range configuredThresholds {
		if t == daysRemaining {
			return true
		}
	}
	return false
}
