package models

import "time"

// LockoutState is the persisted bookkeeping for a timed lockout
type LockoutState struct {
	Active    bool
	StartedAt time.Time
	Duration  time.Duration
}

// Remaining returns how long the lockout still has to run at now (zero when expired or inactive)
func (l LockoutState) Remaining(now time.Time) time.Duration {
	if !l.Active {
		return 0
	}
	elapsed := now.Sub(l.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= l.Duration {
		return 0
	}
	return l.Duration - elapsed
}

// Expired reports whether an active lockout has run its full duration at now
func (l LockoutState) Expired(now time.Time) bool {
	return l.Active && now.Sub(l.StartedAt) >= l.Duration
}
