package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/gatekeeper"
	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/internal/notify"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
	pkglogger "github.com/BradenHooton/admingate/pkg/logger"
	"k8s.io/utils/clock"
)

const (
	maxLoginBodyBytes = 4 << 10
	alertTimeout      = 10 * time.Second
)

// GatekeeperSource hands out the gatekeeper of a browser tab
type GatekeeperSource interface {
	Acquire(ctx context.Context, browserID, tabID string) (*gatekeeper.Gatekeeper, error)
}

// AlertRecorder counts delivered and failed lockout alerts
type AlertRecorder interface {
	RecordAlert(err error)
}

// GateConfig wires a GateHandler
type GateConfig struct {
	Gates       GatekeeperSource
	Tokens      *auth.TokenManager
	Timing      *auth.TimingDelay
	Audit       *pkglogger.AuditLogger
	Alerter     notify.Alerter
	Alerts      AlertRecorder
	IPConfig    *pkghttp.IPConfig
	Cookies     auth.CookieConfig
	MaxAttempts int
	Clock       clock.WithTicker
	Heartbeat   time.Duration
	Logger      *slog.Logger
}

// GateHandler serves the login gate of the admin dashboard
type GateHandler struct {
	cfg GateConfig
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(cfg GateConfig) *GateHandler {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Timing == nil {
		cfg.Timing = auth.NewTimingDelayWithClock(auth.TimingConfig{}, cfg.Clock)
	}
	if cfg.Alerter == nil {
		cfg.Alerter = notify.NopAlerter{}
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GateHandler{cfg: cfg}
}

// LoginRequest represents the request body for a credential submission.
// Empty fields are submitted like any other wrong pair.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"max=128"`
	Secret     string `json:"secret" validate:"max=256"`
}

// StateResponse is the tab's view of the gate
type StateResponse struct {
	IsAuthenticated   bool             `json:"is_authenticated"`
	User              *models.UserInfo `json:"user"`
	TabID             string           `json:"tab_id"`
	Phase             gatekeeper.Phase `json:"phase"`
	Attempts          int              `json:"attempts"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	RemainingMs       int64            `json:"remaining_ms"`
	RemainingDisplay  string           `json:"remaining_display,omitempty"`
	Version           uint64           `json:"version"`
	Token             string           `json:"token,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
}

// LoginResponse is returned for a successful submission
type LoginResponse struct {
	Message string        `json:"message"`
	State   StateResponse `json:"state"`
}

// tab resolves the caller's browser and tab, issuing ids that are missing.
func (h *GateHandler) tab(w http.ResponseWriter, r *http.Request) (string, *gatekeeper.Gatekeeper, bool) {
	browserID := auth.EnsureBrowserID(w, r, h.cfg.Cookies)

	g, err := h.cfg.Gates.Acquire(r.Context(), browserID, r.Header.Get(auth.TabIDHeader))
	if err != nil {
		h.cfg.Logger.Error("failed to acquire gatekeeper", "error", err, "browser_id", browserID)
		pkghttp.WriteServiceUnavailable(w, "Login gate unavailable")
		return "", nil, false
	}

	w.Header().Set(auth.TabIDHeader, g.TabID())
	return browserID, g, true
}

// stateResponse renders st for tabID. An authenticated state carries a
// session token so a reloaded tab can resume without re-entering credentials.
func (h *GateHandler) stateResponse(browserID, tabID string, st gatekeeper.State) StateResponse {
	resp := StateResponse{
		IsAuthenticated: st.Phase == gatekeeper.PhaseAuthenticated,
		User:            st.User(),
		TabID:           tabID,
		Phase:           st.Phase,
		Attempts:        st.Attempts,
		RemainingMs:     st.Remaining.Milliseconds(),
		Version:         st.Version,
	}
	if h.cfg.MaxAttempts > 0 && st.Phase == gatekeeper.PhaseUnlocked {
		resp.AttemptsRemaining = h.cfg.MaxAttempts - st.Attempts
	}
	if st.Phase == gatekeeper.PhaseLocked {
		resp.RemainingDisplay = gatekeeper.FormatRemaining(st.Remaining)
	}

	if resp.IsAuthenticated && st.Session != nil && h.cfg.Tokens != nil {
		token, err := h.cfg.Tokens.GenerateSessionToken(browserID, st.Session)
		if err != nil {
			h.cfg.Logger.Error("failed to sign session token", "error", err, "tab_id", tabID)
		} else {
			resp.Token = token
			expires := st.Session.ExpiresAt
			resp.ExpiresAt = &expires
		}
	}
	return resp
}

// State handles GET /auth/state
func (h *GateHandler) State(w http.ResponseWriter, r *http.Request) {
	browserID, g, ok := h.tab(w, r)
	if !ok {
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, h.stateResponse(browserID, g.TabID(), g.State()))
}

// Login handles POST /auth/login
func (h *GateHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := h.cfg.Clock.Now()

	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req, maxLoginBodyBytes); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	browserID, g, ok := h.tab(w, r)
	if !ok {
		return
	}
	tabID := g.TabID()

	res := g.Submit(r.Context(), req.Identifier, req.Secret)

	event := pkglogger.AuditEvent{
		EventType:  pkglogger.EventLogin,
		Identifier: req.Identifier,
		BrowserID:  browserID,
		TabID:      tabID,
		IPAddress:  pkghttp.ExtractClientIP(r, h.cfg.IPConfig),
		UserAgent:  r.UserAgent(),
		Success:    res.OK,
	}
	switch {
	case res.Outcome == gatekeeper.OutcomeAccountLocked:
		event.EventType = pkglogger.EventLockout
		event.FailureReason = "max_attempts_reached"
	case errors.Is(res.Err, models.ErrLockoutActive):
		event.EventType = pkglogger.EventLockedReject
		event.FailureReason = "lockout_active"
	case !res.OK && res.Err != nil:
		event.FailureReason = res.Err.Error()
	}
	h.cfg.Audit.LogAuthAttempt(r.Context(), event)

	if res.Outcome == gatekeeper.OutcomeAccountLocked {
		h.sendLockoutAlert(r.Context(), notify.LockoutAlert{
			Identifier: pkglogger.SanitizedIdentifier(req.Identifier),
			BrowserID:  browserID,
			TabID:      tabID,
			ClientIP:   event.IPAddress,
			LockedAt:   h.cfg.Clock.Now(),
			Duration:   res.State.Remaining,
		})
	}

	if !res.OK {
		h.cfg.Timing.WaitFrom(r.Context(), start, false)
	}

	switch {
	case res.OK:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Message: res.Message,
			State:   h.stateResponse(browserID, tabID, res.State),
		})
	case errors.Is(res.Err, gatekeeper.ErrClosed):
		pkghttp.WriteServiceUnavailable(w, "Login gate unavailable")
	case errors.Is(res.Err, models.ErrAlreadySignedIn):
		pkghttp.WriteError(w, http.StatusConflict, "already_signed_in", res.Message)
	case res.State.Phase == gatekeeper.PhaseLocked:
		pkghttp.WriteLocked(w, "account_locked", res.Message, res.State.Remaining)
	case errors.Is(res.Err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", res.Message)
	default:
		h.cfg.Logger.Error("unexpected login result", "outcome", res.Outcome, "error", res.Err)
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// sendLockoutAlert delivers alert without holding up the response
func (h *GateHandler) sendLockoutAlert(ctx context.Context, alert notify.LockoutAlert) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, alertTimeout)
		defer cancel()

		err := h.cfg.Alerter.SendLockoutAlert(ctx, alert)
		if err != nil {
			h.cfg.Logger.Error("failed to send lockout alert", "error", err, "tab_id", alert.TabID)
		}
		if h.cfg.Alerts != nil {
			h.cfg.Alerts.RecordAlert(err)
		}
	}()
}

// Logout handles POST /auth/logout
func (h *GateHandler) Logout(w http.ResponseWriter, r *http.Request) {
	browserID, g, ok := h.tab(w, r)
	if !ok {
		return
	}
	tabID := g.TabID()

	res := g.Logout(r.Context())
	h.cfg.Audit.LogAuthAttempt(r.Context(), pkglogger.AuditEvent{
		EventType:     pkglogger.EventLogout,
		BrowserID:     browserID,
		TabID:         tabID,
		IPAddress:     pkghttp.ExtractClientIP(r, h.cfg.IPConfig),
		UserAgent:     r.UserAgent(),
		Success:       res.OK,
		FailureReason: errString(res.Err),
	})

	if errors.Is(res.Err, gatekeeper.ErrClosed) {
		pkghttp.WriteServiceUnavailable(w, "Login gate unavailable")
		return
	}
	if !res.OK {
		code := "not_authenticated"
		if errors.Is(res.Err, models.ErrSessionNotOwned) {
			code = "session_not_owned"
		}
		pkghttp.WriteError(w, http.StatusConflict, code, res.Message)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: res.Message,
		State:   h.stateResponse(browserID, tabID, res.State),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
