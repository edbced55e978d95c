package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/BradenHooton/admingate/internal/models"
)

const tokenIssuer = "admingate"

// TokenManager issues and verifies HS256 session tokens
type TokenManager struct {
	secret []byte
	clock  clock.PassiveClock
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, clk clock.PassiveClock) *TokenManager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &TokenManager{secret: []byte(secret), clock: clk}
}

// GenerateSessionToken signs a token that expires with session
func (tm *TokenManager) GenerateSessionToken(browserID string, session *models.SessionRecord) (string, error) {
	now := tm.clock.Now()
	claims := &models.SessionClaims{
		SessionID: session.ID,
		BrowserID: browserID,
		TabID:     session.TabID,
		Username:  session.User.Username,
		Role:      session.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			Subject:   session.User.Username,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(tm.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.SessionID == "" || claims.TabID == "" || claims.BrowserID == "" {
		return nil, fmt.Errorf("invalid token: missing session binding")
	}

	return claims, nil
}
