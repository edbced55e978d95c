package logger

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// SanitizedIdentifier masks a login identifier for logging, keeping the first
// two characters ("VS*******"). Short identifiers are fully masked.
func SanitizedIdentifier(identifier string) string {
	n := utf8.RuneCountInString(identifier)
	if n == 0 {
		return "[empty]"
	}
	if n <= 3 {
		return strings.Repeat("*", n)
	}
	runes := []rune(identifier)
	return string(runes[:2]) + strings.Repeat("*", n-2)
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveParams = []string{
	"password",
	"secret",
	"token",
	"identifier",
	"auth",
	"session",
	"tab",
}

// SanitizeQueryString reports whether rawQuery mentions a sensitive parameter
// and should be redacted as a whole
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
