package models

import "time"

// Credential is one entry of the static admin credential set.
// SecretHash is a bcrypt hash of the configured secret.
type Credential struct {
	Identifier string
	SecretHash string
	Role       string
}

// UserInfo is the identity exposed to the dashboard shell once a tab is authenticated.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// SessionRecord is the durable proof of a successful login for one tab.
type SessionRecord struct {
	ID            string    `json:"id"`
	TabID         string    `json:"tab_id"`
	EstablishedAt time.Time `json:"established_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	User          UserInfo  `json:"user"`
}

// Valid reports whether the session belongs to tabID and has not expired at now.
func (s *SessionRecord) Valid(tabID string, now time.Time) bool {
	if s == nil {
		return false
	}
	return s.TabID == tabID && now.Before(s.ExpiresAt)
}
