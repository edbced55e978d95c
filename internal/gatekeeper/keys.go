package gatekeeper

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/BradenHooton/admingate/internal/models"
)

// Browser-scoped storage keys
const (
	KeySession       = "adminAuth"
	KeyUser          = "user"
	KeyAuthenticated = "isAuthenticated"
	KeyAttempts      = "loginAttempts"
	KeyLocked        = "isLocked"
	KeyLockoutStart  = "lockoutStart"
)

// authRecord is the JSON stored under KeySession
type authRecord struct {
	SessionID string `json:"sessionId"`
	TabID     string `json:"tabId"`
	Expires   int64  `json:"expires"`
	LoginTime string `json:"loginTime"`
}

// The helpers below log store failures and carry on with the in-memory state.

func (g *Gatekeeper) get(ctx context.Context, key string) (string, bool) {
	value, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			g.logger.Warn("session store read failed", "key", key, "tab_id", g.tabID, "error", err)
		}
		return "", false
	}
	return value, true
}

func (g *Gatekeeper) set(ctx context.Context, key, value string) {
	if err := g.store.Set(ctx, key, value); err != nil {
		g.logger.Warn("session store write failed", "key", key, "tab_id", g.tabID, "error", err)
	}
}

func (g *Gatekeeper) del(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := g.store.Delete(ctx, key); err != nil {
			g.logger.Warn("session store delete failed", "key", key, "tab_id", g.tabID, "error", err)
		}
	}
}

func (g *Gatekeeper) loadSession(ctx context.Context) *models.SessionRecord {
	raw, ok := g.get(ctx, KeySession)
	if !ok {
		return nil
	}
	var rec authRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		g.logger.Warn("discarding malformed session record", "tab_id", g.tabID, "error", err)
		return nil
	}

	session := &models.SessionRecord{
		ID:        rec.SessionID,
		TabID:     rec.TabID,
		ExpiresAt: time.UnixMilli(rec.Expires),
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.LoginTime); err == nil {
		session.EstablishedAt = t
	}
	if rawUser, ok := g.get(ctx, KeyUser); ok {
		if err := json.Unmarshal([]byte(rawUser), &session.User); err != nil {
			g.logger.Warn("discarding malformed user record", "tab_id", g.tabID, "error", err)
		}
	}
	return session
}

func (g *Gatekeeper) saveSession(ctx context.Context, session *models.SessionRecord) {
	rec, err := json.Marshal(authRecord{
		SessionID: session.ID,
		TabID:     session.TabID,
		Expires:   session.ExpiresAt.UnixMilli(),
		LoginTime: session.EstablishedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		g.logger.Error("failed to encode session record", "error", err)
		return
	}
	user, err := json.Marshal(session.User)
	if err != nil {
		g.logger.Error("failed to encode user record", "error", err)
		return
	}

	g.set(ctx, KeySession, string(rec))
	g.set(ctx, KeyUser, string(user))
	g.set(ctx, KeyAuthenticated, "true")
}

func (g *Gatekeeper) clearSession(ctx context.Context) {
	g.del(ctx, KeySession, KeyAuthenticated, KeyUser)
}

func (g *Gatekeeper) loadAttempts(ctx context.Context) int {
	n, _ := g.readAttempts(ctx)
	return n
}

// readAttempts returns the persisted counter. ok is false only when the store
// could not be read; a missing or malformed value counts as zero.
func (g *Gatekeeper) readAttempts(ctx context.Context) (int, bool) {
	raw, err := g.store.Get(ctx, KeyAttempts)
	if errors.Is(err, models.ErrNotFound) {
		return 0, true
	}
	if err != nil {
		g.logger.Warn("session store read failed", "key", KeyAttempts, "tab_id", g.tabID, "error", err)
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, true
	}
	return n, true
}

func (g *Gatekeeper) saveAttempts(ctx context.Context, n int) {
	g.set(ctx, KeyAttempts, strconv.Itoa(n))
}

func (g *Gatekeeper) loadLockout(ctx context.Context) models.LockoutState {
	flag, ok := g.get(ctx, KeyLocked)
	if !ok || flag != "true" {
		return models.LockoutState{}
	}
	lockout := models.LockoutState{Active: true, Duration: g.policy.LockoutDuration}
	if raw, ok := g.get(ctx, KeyLockoutStart); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lockout.StartedAt = time.UnixMilli(ms)
		}
	}
	// A flag without a readable start time cannot be resumed; treat it as long expired
	return lockout
}

func (g *Gatekeeper) saveLockout(ctx context.Context, startedAt time.Time) {
	g.set(ctx, KeyLocked, "true")
	g.set(ctx, KeyLockoutStart, strconv.FormatInt(startedAt.UnixMilli(), 10))
}

// clearLockout drops the lockout bookkeeping together with the attempt counter
func (g *Gatekeeper) clearLockout(ctx context.Context) {
	g.del(ctx, KeyLocked, KeyLockoutStart, KeyAttempts)
}
