package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")

	// Gatekeeper outcomes
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrLockoutActive      = errors.New("lockout in progress")
	ErrSessionNotOwned    = errors.New("session belongs to another tab")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAlreadySignedIn    = errors.New("already signed in")
)
