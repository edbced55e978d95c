package gatekeeper

import (
	"fmt"
	"time"
)

// Policy holds the tunable constants of the lockout state machine
type Policy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	SessionTTL      time.Duration
	TickInterval    time.Duration
}

// DefaultPolicy mirrors the dashboard's login screen: three tries, a 30 second
// lockout, two hour sessions and a one second countdown.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		LockoutDuration: 30 * time.Second,
		SessionTTL:      2 * time.Hour,
		TickInterval:    time.Second,
	}
}

// Validate rejects policies the state machine cannot run
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be positive, got %s", p.LockoutDuration)
	}
	if p.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", p.SessionTTL)
	}
	if p.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", p.TickInterval)
	}
	if p.TickInterval > p.LockoutDuration {
		return fmt.Errorf("tick interval %s exceeds lockout duration %s", p.TickInterval, p.LockoutDuration)
	}
	return nil
}
