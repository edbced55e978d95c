package store

import (
	"context"
	"strings"
)

// Scoped namespaces every key of a shared SessionStore under a prefix, the way
// browser storage is partitioned per browser profile.
type Scoped struct {
	base   SessionStore
	prefix string
}

// NewScoped wraps base so all keys live under "<scope>:".
func NewScoped(base SessionStore, scope string) *Scoped {
	return &Scoped{base: base, prefix: scope + ":"}
}

func (s *Scoped) Get(ctx context.Context, key string) (string, error) {
	return s.base.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.prefix+key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.base.Delete(ctx, s.prefix+key)
}

func (s *Scoped) Subscribe(key string, fn func(Change)) (func(), error) {
	return s.base.Subscribe(s.prefix+key, func(c Change) {
		c.Key = strings.TrimPrefix(c.Key, s.prefix)
		fn(c)
	})
}

var _ SessionStore = (*Scoped)(nil)
