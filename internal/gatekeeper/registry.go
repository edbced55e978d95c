package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/internal/store"
)

// RegistryConfig configures a Registry. Store is the shared substrate; each
// browser gets its own scope within it.
type RegistryConfig struct {
	Policy      Policy
	Credentials *CredentialSet
	Store       store.SessionStore
	Clock       clock.WithTicker
	Recorder    Recorder
	Logger      *slog.Logger
	IdleTimeout time.Duration
}

// Registry holds one live Gatekeeper per browser tab
type Registry struct {
	mu      sync.RWMutex
	cfg     RegistryConfig
	entries map[string]*Gatekeeper
	closed  bool
}

// NewRegistry creates an empty registry
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}

	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*Gatekeeper),
	}, nil
}

func registryKey(browserID, tabID string) string {
	return browserID + "|" + tabID
}

// BrowserScope is the prefix under which a browser's keys live in the shared store
func BrowserScope(browserID string) string {
	return "browser:" + browserID
}

// Lookup returns the live gatekeeper for a tab without creating one
func (r *Registry) Lookup(browserID, tabID string) (*Gatekeeper, bool) {
	r.mu.RLock()
	g, ok := r.entries[registryKey(browserID, tabID)]
	r.mu.RUnlock()
	if ok {
		g.touch()
	}
	return g, ok
}

// ActiveSession returns the unexpired session of a tab. A tab without a live
// gatekeeper, because it was evicted or was served by another replica, is
// restored from the store first.
func (r *Registry) ActiveSession(ctx context.Context, browserID, tabID string) (*models.SessionRecord, bool) {
	g, ok := r.Lookup(browserID, tabID)
	if !ok {
		if !ValidTabID(tabID) {
			return nil, false
		}
		var err error
		if g, err = r.Acquire(ctx, browserID, tabID); err != nil {
			r.cfg.Logger.Warn("failed to restore tab for session check",
				"browser_id", browserID, "tab_id", tabID, "error", err)
			return nil, false
		}
	}
	if !g.IsAuthenticated() {
		return nil, false
	}
	st := g.State()
	return st.Session, st.Session != nil
}

// Acquire returns the gatekeeper for a tab, creating and restoring it on first
// use. A missing or malformed tabID gets a freshly generated tab.
func (r *Registry) Acquire(ctx context.Context, browserID, tabID string) (*Gatekeeper, error) {
	if browserID == "" {
		return nil, fmt.Errorf("browser id is required")
	}
	if ValidTabID(tabID) {
		if g, ok := r.Lookup(browserID, tabID); ok {
			return g, nil
		}
	}

	tabStore := store.NewMemoryStore()
	if ValidTabID(tabID) {
		if err := tabStore.Set(ctx, TabIDKey, tabID); err != nil {
			return nil, fmt.Errorf("failed to seed tab store: %w", err)
		}
	}

	g, err := New(ctx, Config{
		Policy:      r.cfg.Policy,
		Credentials: r.cfg.Credentials,
		Store:       store.NewScoped(r.cfg.Store, BrowserScope(browserID)),
		TabStore:    tabStore,
		Clock:       r.cfg.Clock,
		Recorder:    r.cfg.Recorder,
		Logger:      r.cfg.Logger.With("browser_id", browserID),
	})
	if err != nil {
		tabStore.Close()
		return nil, err
	}
	g.Restore(ctx)

	key := registryKey(browserID, g.TabID())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		g.Close()
		return nil, fmt.Errorf("registry closed")
	}
	if existing, ok := r.entries[key]; ok {
		r.mu.Unlock()
		g.Close()
		existing.touch()
		return existing, nil
	}
	r.entries[key] = g
	count := len(r.entries)
	r.mu.Unlock()

	r.cfg.Recorder.SetActiveGatekeepers(count)
	return g, nil
}

// Sweep expires sessions past their window and evicts gatekeepers idle longer
// than the idle timeout. Gatekeepers with live watchers are never evicted.
// When the last tab of a browser is evicted signed out, its attempt counter
// and lapsed records are removed from the store as well.
func (r *Registry) Sweep(ctx context.Context) (expired, evicted int) {
	r.mu.RLock()
	snapshot := make(map[string]*Gatekeeper, len(r.entries))
	for key, g := range r.entries {
		snapshot[key] = g
	}
	r.mu.RUnlock()

	now := r.cfg.Clock.Now()
	for key, g := range snapshot {
		if g.Expire(ctx) {
			expired++
		}
		if now.Sub(g.LastActive()) < r.cfg.IdleTimeout || g.watched() {
			continue
		}

		browserID := key[:strings.LastIndex(key, "|")]
		r.mu.Lock()
		removed := r.entries[key] == g
		if removed {
			delete(r.entries, key)
			evicted++
		}
		lastTab := removed && !r.hasBrowserLocked(browserID)
		r.mu.Unlock()

		if lastTab {
			g.forgetIdle(ctx)
		}
		g.Close()
	}

	r.cfg.Recorder.SetActiveGatekeepers(r.Len())
	return expired, evicted
}

func (r *Registry) hasBrowserLocked(browserID string) bool {
	prefix := browserID + "|"
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of live gatekeepers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close shuts down every gatekeeper. Acquire fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Gatekeeper)
	r.closed = true
	r.mu.Unlock()

	for _, g := range entries {
		g.Close()
	}
	r.cfg.Recorder.SetActiveGatekeepers(0)
}
