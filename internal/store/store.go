// Package store provides the key/value substrate the gatekeeper persists its
// attempt counter, lockout bookkeeping and session records in.
//
// Every backend delivers change notifications asynchronously and in order per
// subscriber, so a subscriber may safely call back into the store or take its
// own locks from inside the callback.
package store

import "context"

// Change describes a mutation of a single key.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// SessionStore is a string key/value store with per-key change notifications.
// Get returns models.ErrNotFound for missing keys.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Subscribe(key string, fn func(Change)) (unsubscribe func(), err error)
}

// HealthChecker is implemented by backends that depend on an external service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
