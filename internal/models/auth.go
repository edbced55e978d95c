package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are carried by the bearer token issued on a successful login.
// The token is only honoured while the matching gatekeeper session is live.
type SessionClaims struct {
	SessionID string `json:"sid"`
	BrowserID string `json:"bid"`
	TabID     string `json:"tab_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}
