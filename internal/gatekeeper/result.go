package gatekeeper

import (
	"time"

	"github.com/BradenHooton/admingate/internal/models"
)

// Phase names the state the gatekeeper is in
type Phase string

const (
	PhaseUnlocked      Phase = "unlocked"
	PhaseLocked        Phase = "locked"
	PhaseAuthenticated Phase = "authenticated"
)

// State is a point-in-time snapshot of a gatekeeper.
// Version increases with every transition and countdown tick.
type State struct {
	Phase     Phase
	Attempts  int
	Remaining time.Duration
	Session   *models.SessionRecord
	Version   uint64
}

// User returns the authenticated user, if any
func (s State) User() *models.UserInfo {
	if s.Phase != PhaseAuthenticated || s.Session == nil {
		return nil
	}
	u := s.Session.User
	return &u
}

// Outcome classifies the result of an operation
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeAccountLocked      Outcome = "account_locked"
	OutcomeNoOp               Outcome = "no_op"
)

// Result is what every gatekeeper operation returns instead of an error.
// Err carries a models sentinel for errors.Is when OK is false.
type Result struct {
	OK      bool
	Outcome Outcome
	Message string
	Err     error
	State   State
}
