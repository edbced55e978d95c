package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSecretCost = 12
	MinSecretLen      = 8
)

// Common weak secrets flagged at startup
var commonSecrets = map[string]bool{
	"password":    true,
	"12345678":    true,
	"qwerty":      true,
	"abc123":      true,
	"password123": true,
	"123456":      true,
	"admin":       true,
	"admin123":    true,
	"letmein":     true,
	"welcome":     true,
	"changeme":    true,
}

// HashSecret hashes an admin secret with bcrypt at the given cost
func HashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// CompareSecret returns nil only when secret is exactly the value hashed into hash
func CompareSecret(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// IsSecretHash reports whether s is already a bcrypt hash
func IsSecretHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// HashCost returns the bcrypt cost of hash, or DefaultSecretCost if it cannot be read
func HashCost(hash string) int {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return DefaultSecretCost
	}
	return cost
}

// WeakSecret reports whether a configured secret is short or on the common list
func WeakSecret(secret string) bool {
	return len(secret) < MinSecretLen || commonSecrets[strings.ToLower(secret)]
}
