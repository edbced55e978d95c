// Package gatekeeper implements the admin login state machine: a bounded
// number of credential attempts, a timed lockout with a one second countdown,
// and tab-scoped sessions persisted in a SessionStore.
//
// All operations on one Gatekeeper are serialized by its mutex, so a
// submission that arrives during a countdown tick runs after the tick.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/internal/store"
)

// ErrClosed is reported by operations on a closed gatekeeper
var ErrClosed = errors.New("gatekeeper closed")

// Recorder receives gatekeeper events for metrics
type Recorder interface {
	RecordOutcome(outcome Outcome)
	RecordUnlock()
	RecordInvalidation()
	SetActiveGatekeepers(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(Outcome)    {}
func (nopRecorder) RecordUnlock()            {}
func (nopRecorder) RecordInvalidation()      {}
func (nopRecorder) SetActiveGatekeepers(int) {}

// Config wires a Gatekeeper to its collaborators. Store is browser scoped,
// TabStore is private to one tab.
type Config struct {
	Policy      Policy
	Credentials *CredentialSet
	Store       store.SessionStore
	TabStore    store.SessionStore
	Clock       clock.WithTicker
	Scheduler   Scheduler
	Recorder    Recorder
	Logger      *slog.Logger
}

// Gatekeeper decides whether one browser tab may see protected content
type Gatekeeper struct {
	mu sync.Mutex

	policy    Policy
	creds     *CredentialSet
	store     store.SessionStore
	clock     clock.WithTicker
	scheduler Scheduler
	recorder  Recorder
	logger    *slog.Logger
	tabID     string

	phase    Phase
	attempts int
	lockout  models.LockoutState
	session  *models.SessionRecord
	version  uint64

	countdown    Handle
	countdownGen uint64

	watchers    map[int]func(State)
	nextWatcher int
	unsubscribe func()
	lastActive  time.Time
	closed      bool
}

// New creates a gatekeeper in Unlocked(0). Callers normally follow with Restore.
func New(ctx context.Context, cfg Config) (*Gatekeeper, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Store == nil || cfg.TabStore == nil {
		return nil, fmt.Errorf("session and tab stores are required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewClockScheduler(cfg.Clock)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	now := cfg.Clock.Now()
	tabID, err := ResolveTabID(ctx, cfg.TabStore, now)
	if err != nil {
		return nil, err
	}

	g := &Gatekeeper{
		policy:     cfg.Policy,
		creds:      cfg.Credentials,
		store:      cfg.Store,
		clock:      cfg.Clock,
		scheduler:  cfg.Scheduler,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger.With("tab_id", tabID),
		tabID:      tabID,
		phase:      PhaseUnlocked,
		watchers:   make(map[int]func(State)),
		lastActive: now,
	}

	unsubscribe, err := cfg.Store.Subscribe(KeySession, g.onSessionChange)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session changes: %w", err)
	}
	g.unsubscribe = unsubscribe

	return g, nil
}

// Restore rebuilds the state from storage: a valid session for this tab wins,
// then an unexpired lockout (countdown resumed), then the persisted attempt count.
// An expired lockout is cleared and yields Unlocked(0).
func (g *Gatekeeper) Restore(ctx context.Context) State {
	g.mu.Lock()
	if g.closed {
		st := g.snapshotLocked()
		g.mu.Unlock()
		return st
	}
	g.touchLocked()
	g.cancelCountdownLocked()
	now := g.clock.Now()

	if session := g.loadSession(ctx); session.Valid(g.tabID, now) {
		g.phase = PhaseAuthenticated
		g.session = session
		g.attempts = 0
		g.lockout = models.LockoutState{}
		return g.release()
	}

	g.session = nil
	lockout := g.loadLockout(ctx)
	switch {
	case lockout.Active && !lockout.Expired(now):
		g.phase = PhaseLocked
		g.lockout = lockout
		g.attempts = g.loadAttempts(ctx)
		g.startCountdownLocked()
		g.logger.Info("resumed lockout", "remaining", lockout.Remaining(now).String())
	case lockout.Active:
		g.clearLockout(ctx)
		g.phase = PhaseUnlocked
		g.lockout = models.LockoutState{}
		g.attempts = 0
	default:
		g.phase = PhaseUnlocked
		g.lockout = models.LockoutState{}
		g.attempts = min(g.loadAttempts(ctx), g.policy.MaxAttempts-1)
	}
	return g.release()
}

// Submit checks identifier and secret against the credential set
func (g *Gatekeeper) Submit(ctx context.Context, identifier, secret string) Result {
	g.mu.Lock()
	if g.closed {
		return g.noOpLocked("Session closed.", ErrClosed)
	}
	g.touchLocked()
	now := g.clock.Now()

	switch g.phase {
	case PhaseAuthenticated:
		if g.session.Valid(g.tabID, now) {
			return g.noOpLocked("Already signed in.", models.ErrAlreadySignedIn)
		}
		g.expireLocked(ctx)
	case PhaseLocked:
		if !g.lockout.Expired(now) {
			msg := fmt.Sprintf("Account temporarily locked. Try again in %s.", FormatRemaining(g.lockout.Remaining(now)))
			return g.noOpLocked(msg, models.ErrLockoutActive)
		}
		g.unlockLocked(ctx)
	}

	if g.syncSharedLocked(ctx, now) {
		g.recorder.RecordOutcome(OutcomeNoOp)
		return Result{
			Outcome: OutcomeNoOp,
			Message: fmt.Sprintf("Account temporarily locked. Try again in %s.", FormatRemaining(g.lockout.Remaining(now))),
			Err:     models.ErrLockoutActive,
			State:   g.release(),
		}
	}

	user, ok := g.creds.Match(identifier, secret)
	if ok {
		g.cancelCountdownLocked()
		g.attempts = 0
		g.lockout = models.LockoutState{}
		g.clearLockout(ctx)

		session := &models.SessionRecord{
			ID:            uuid.NewString(),
			TabID:         g.tabID,
			EstablishedAt: now,
			ExpiresAt:     now.Add(g.policy.SessionTTL),
			User:          user,
		}
		g.saveSession(ctx, session)
		g.session = session
		g.phase = PhaseAuthenticated

		g.recorder.RecordOutcome(OutcomeSuccess)
		g.logger.Info("session established", "session_id", session.ID, "role", user.Role)
		return Result{OK: true, Outcome: OutcomeSuccess, Message: "Login successful.", State: g.release()}
	}

	g.attempts++
	g.saveAttempts(ctx, g.attempts)

	if g.attempts >= g.policy.MaxAttempts {
		g.lockout = models.LockoutState{Active: true, StartedAt: now, Duration: g.policy.LockoutDuration}
		g.saveLockout(ctx, now)
		g.phase = PhaseLocked
		g.startCountdownLocked()

		g.recorder.RecordOutcome(OutcomeAccountLocked)
		g.logger.Warn("lockout started", "attempts", g.attempts, "duration", g.policy.LockoutDuration.String())
		return Result{
			Outcome: OutcomeAccountLocked,
			Message: fmt.Sprintf("Too many failed attempts! Account locked for %d seconds.", ceilSeconds(g.policy.LockoutDuration)),
			Err:     models.ErrAccountLocked,
			State:   g.release(),
		}
	}

	g.recorder.RecordOutcome(OutcomeInvalidCredentials)
	return Result{
		Outcome: OutcomeInvalidCredentials,
		Message: fmt.Sprintf("Invalid Credentials. %d attempts remaining.", g.policy.MaxAttempts-g.attempts),
		Err:     models.ErrInvalidCredentials,
		State:   g.release(),
	}
}

// Logout ends this tab's session. The persisted record is only erased when it
// belongs to this tab, so one tab cannot sign another out.
func (g *Gatekeeper) Logout(ctx context.Context) Result {
	g.mu.Lock()
	if g.closed {
		return g.noOpLocked("Session closed.", ErrClosed)
	}
	g.touchLocked()

	if g.phase != PhaseAuthenticated {
		return g.noOpLocked("Not signed in.", models.ErrNotAuthenticated)
	}

	persisted := g.loadSession(ctx)
	if persisted != nil && persisted.TabID != g.tabID {
		return g.noOpLocked("Session belongs to another tab.", models.ErrSessionNotOwned)
	}
	if persisted != nil {
		g.clearSession(ctx)
	}

	g.logger.Info("session ended", "session_id", g.session.ID)
	g.session = nil
	g.phase = PhaseUnlocked
	g.attempts = 0
	return Result{OK: true, Outcome: OutcomeSuccess, Message: "Logged out.", State: g.release()}
}

// Expire ends an authenticated session whose window has passed.
// It reports whether a session was expired.
func (g *Gatekeeper) Expire(ctx context.Context) bool {
	g.mu.Lock()
	if g.closed || g.phase != PhaseAuthenticated || g.session.Valid(g.tabID, g.clock.Now()) {
		g.mu.Unlock()
		return false
	}
	g.expireLocked(ctx)
	g.release()
	return true
}

func (g *Gatekeeper) expireLocked(ctx context.Context) {
	if persisted := g.loadSession(ctx); persisted != nil && persisted.TabID == g.tabID {
		g.clearSession(ctx)
	}
	g.logger.Info("session expired", "session_id", g.session.ID)
	g.session = nil
	g.phase = PhaseUnlocked
	g.attempts = 0
}

// onSessionChange forces an authenticated tab back to Unlocked(0) when the
// shared session key is removed by any context.
func (g *Gatekeeper) onSessionChange(c store.Change) {
	if !c.Deleted {
		return
	}

	g.mu.Lock()
	if g.closed || g.phase != PhaseAuthenticated {
		g.mu.Unlock()
		return
	}
	// The key may have been written again since the deletion was published
	if session := g.loadSession(context.Background()); session.Valid(g.tabID, g.clock.Now()) {
		g.mu.Unlock()
		return
	}

	g.logger.Info("session invalidated by another context", "session_id", g.session.ID)
	g.session = nil
	g.phase = PhaseUnlocked
	g.attempts = 0
	g.recorder.RecordInvalidation()
	g.release()
}

// syncSharedLocked adopts the counter and lockout written by other tabs of the
// same browser, so opening more tabs does not buy more attempts. It reports
// whether this tab is now locked. An unreadable store keeps the in-memory count.
func (g *Gatekeeper) syncSharedLocked(ctx context.Context, now time.Time) bool {
	lockout := g.loadLockout(ctx)
	switch {
	case lockout.Active && !lockout.Expired(now):
		g.phase = PhaseLocked
		g.lockout = lockout
		g.attempts = g.loadAttempts(ctx)
		g.startCountdownLocked()
		g.logger.Info("adopted lockout from another tab", "remaining", lockout.Remaining(now).String())
		return true
	case lockout.Active:
		g.clearLockout(ctx)
		g.attempts = 0
		return false
	}

	if n, ok := g.readAttempts(ctx); ok {
		g.attempts = min(n, g.policy.MaxAttempts-1)
	}
	return false
}

// forgetIdle drops the persisted bookkeeping of a signed-out tab that is about
// to be evicted: the attempt counter, a lapsed lockout and a lapsed session.
// A running lockout and an unexpired session are kept.
func (g *Gatekeeper) forgetIdle(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if g.closed || g.phase == PhaseAuthenticated {
		return
	}
	if g.phase == PhaseLocked && !g.lockout.Expired(now) {
		return
	}
	g.clearLockout(ctx)
	if session := g.loadSession(ctx); session != nil && !now.Before(session.ExpiresAt) {
		g.clearSession(ctx)
	}
}

func (g *Gatekeeper) startCountdownLocked() {
	g.cancelCountdownLocked()
	gen := g.countdownGen
	g.countdown = g.scheduler.ScheduleTick(
		g.policy.TickInterval,
		func() bool { return g.tick(gen) },
		func() { g.completeCountdown(gen) },
	)
}

// cancelCountdownLocked invalidates any running countdown; its callbacks become no-ops
func (g *Gatekeeper) cancelCountdownLocked() {
	g.countdownGen++
	if g.countdown != nil {
		g.countdown.Cancel()
		g.countdown = nil
	}
}

func (g *Gatekeeper) tick(gen uint64) bool {
	g.mu.Lock()
	if gen != g.countdownGen || g.phase != PhaseLocked {
		g.mu.Unlock()
		return true
	}
	if g.lockout.Remaining(g.clock.Now()) <= 0 {
		g.mu.Unlock()
		return true
	}
	g.release()
	return false
}

func (g *Gatekeeper) completeCountdown(gen uint64) {
	g.mu.Lock()
	if gen != g.countdownGen || g.phase != PhaseLocked {
		g.mu.Unlock()
		return
	}
	g.unlockLocked(context.Background())
	g.release()
}

func (g *Gatekeeper) unlockLocked(ctx context.Context) {
	g.cancelCountdownLocked()
	g.clearLockout(ctx)
	g.lockout = models.LockoutState{}
	g.attempts = 0
	g.phase = PhaseUnlocked
	g.recorder.RecordUnlock()
	g.logger.Info("lockout cleared")
}

// noOpLocked reports a rejected operation without changing state and releases g.mu
func (g *Gatekeeper) noOpLocked(msg string, err error) Result {
	g.recorder.RecordOutcome(OutcomeNoOp)
	st := g.snapshotLocked()
	g.mu.Unlock()
	return Result{Outcome: OutcomeNoOp, Message: msg, Err: err, State: st}
}

// release publishes a new version of the state, releases g.mu and then
// notifies watchers outside the lock.
func (g *Gatekeeper) release() State {
	g.version++
	st := g.snapshotLocked()
	watchers := make([]func(State), 0, len(g.watchers))
	for _, fn := range g.watchers {
		watchers = append(watchers, fn)
	}
	g.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
	return st
}

func (g *Gatekeeper) snapshotLocked() State {
	st := State{Phase: g.phase, Attempts: g.attempts, Version: g.version}
	switch g.phase {
	case PhaseLocked:
		st.Remaining = g.lockout.Remaining(g.clock.Now())
	case PhaseAuthenticated:
		session := *g.session
		st.Session = &session
	}
	return st
}

func (g *Gatekeeper) touchLocked() {
	g.lastActive = g.clock.Now()
}

func (g *Gatekeeper) touch() {
	g.mu.Lock()
	g.touchLocked()
	g.mu.Unlock()
}

// watched reports whether any watcher is registered
func (g *Gatekeeper) watched() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watchers) > 0
}

// State returns the current snapshot
func (g *Gatekeeper) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// IsAuthenticated reports whether this tab holds an unexpired session
func (g *Gatekeeper) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseAuthenticated && g.session.Valid(g.tabID, g.clock.Now())
}

// User returns the signed-in user, or nil
func (g *Gatekeeper) User() *models.UserInfo {
	return g.State().User()
}

// TabID returns the tab scope this gatekeeper serves
func (g *Gatekeeper) TabID() string {
	return g.tabID
}

// LastActive returns when an operation last ran on this gatekeeper
func (g *Gatekeeper) LastActive() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActive
}

// Watch registers fn for every state change and returns a function removing it.
// fn runs outside the gatekeeper lock and may read state, but must not block.
func (g *Gatekeeper) Watch(fn func(State)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextWatcher
	g.nextWatcher++
	g.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.watchers, id)
			g.mu.Unlock()
		})
	}
}

// Close cancels the countdown, drops watchers and stops listening for session changes
func (g *Gatekeeper) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.cancelCountdownLocked()
	g.watchers = make(map[int]func(State))
	unsubscribe := g.unsubscribe
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
