package logger

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/utils/clock"
)

// Audit event types for the login gate
const (
	EventLogin        = "login"
	EventLockout      = "lockout"
	EventLockedReject = "locked_reject"
	EventLogout       = "logout"
)

// AuditEvent represents a security audit event for one browser tab
type AuditEvent struct {
	EventType     string
	Identifier    string // raw; masked before it is written
	BrowserID     string
	TabID         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit events as structured log records
type AuditLogger struct {
	logger *slog.Logger
	clock  clock.PassiveClock
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		clock:  clock.RealClock{},
	}
}

// LogAuthAttempt logs login, lockout and logout events. Failures log at warn.
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.clock.Now().UTC().Format(time.RFC3339)),
	}

	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.BrowserID != "" {
		attrs = append(attrs, slog.String("browser_id", event.BrowserID))
	}
	if event.TabID != "" {
		attrs = append(attrs, slog.String("tab_id", event.TabID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
