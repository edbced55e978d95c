package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/gatekeeper"
	"github.com/BradenHooton/admingate/internal/notify"
)

func TestGateHandler_State_IssuesBrowserAndTab(t *testing.T) {
	f := newGateFixture(t)

	id := f.openTab(t)
	st := f.state(t, id)

	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Equal(t, id.tabID, st.TabID)
	assert.Equal(t, gatekeeper.PhaseUnlocked, st.Phase)
	assert.Equal(t, 0, st.Attempts)
	assert.Equal(t, 3, st.AttemptsRemaining)
	assert.Empty(t, st.Token)
}

func TestGateHandler_State_MalformedTabIDIsReplaced(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/state", nil)
	tabIdentity{browserID: id.browserID, tabID: "not-a-tab"}.apply(req)
	w := httptest.NewRecorder()
	f.handler.State(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	issued := w.Header().Get(auth.TabIDHeader)
	assert.True(t, gatekeeper.ValidTabID(issued))
	assert.NotEqual(t, "not-a-tab", issued)
}

func TestGateHandler_Login_Success(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	w := f.login(t, id, adminIdentifier, adminSecret)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Login successful.", resp.Message)
	assert.True(t, resp.State.IsAuthenticated)
	require.NotNil(t, resp.State.User)
	assert.Equal(t, adminIdentifier, resp.State.User.Username)
	assert.Equal(t, adminRole, resp.State.User.Role)
	require.NotEmpty(t, resp.State.Token)
	require.NotNil(t, resp.State.ExpiresAt)
	assert.WithinDuration(t, testEpoch.Add(2*time.Hour), *resp.State.ExpiresAt, 0)

	claims, err := f.tokens.ValidateToken(resp.State.Token)
	require.NoError(t, err)
	assert.Equal(t, id.browserID, claims.BrowserID)
	assert.Equal(t, id.tabID, claims.TabID)
	assert.Equal(t, adminRole, claims.Role)

	session, ok := f.registry.ActiveSession(context.Background(), id.browserID, id.tabID)
	require.True(t, ok)
	assert.Equal(t, session.ID, claims.SessionID)
}

func TestGateHandler_Login_InvalidCredentials(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	w := f.login(t, id, adminIdentifier, "wrong")

	resp := AssertErrorResponse(t, w, http.StatusUnauthorized, "invalid_credentials")
	assert.Equal(t, "Invalid Credentials. 2 attempts remaining.", resp.Message)

	st := f.state(t, id)
	assert.Equal(t, 1, st.Attempts)
	assert.Equal(t, 2, st.AttemptsRemaining)
}

func TestGateHandler_Login_LockoutAfterMaxAttempts(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	f.login(t, id, "x", "y")
	f.login(t, id, "x", "y")
	w := f.login(t, id, "x", "y")

	resp := AssertErrorResponse(t, w, http.StatusLocked, "account_locked")
	assert.Equal(t, "Too many failed attempts! Account locked for 30 seconds.", resp.Message)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, int64(30000), resp.RetryAfterMs)

	require.Eventually(t, func() bool { return len(f.alerter.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	alert := f.alerter.Sent()[0]
	assert.Equal(t, id.browserID, alert.BrowserID)
	assert.Equal(t, id.tabID, alert.TabID)
	assert.Equal(t, 30*time.Second, alert.Duration)
	assert.NotEqual(t, "x", alert.Identifier, "identifier must be masked")

	require.Eventually(t, func() bool {
		sent, _ := f.alerts.counts()
		return sent == 1
	}, time.Second, 5*time.Millisecond)

	st := f.state(t, id)
	assert.Equal(t, gatekeeper.PhaseLocked, st.Phase)
	assert.Equal(t, int64(30000), st.RemainingMs)
	assert.Equal(t, "30 sec", st.RemainingDisplay)
	assert.Equal(t, 0, st.AttemptsRemaining)
}

func TestGateHandler_Login_RejectedWhileLocked(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)
	for i := 0; i < 3; i++ {
		f.login(t, id, "x", "y")
	}

	// Even the right pair is refused until the countdown ends
	w := f.login(t, id, adminIdentifier, adminSecret)

	resp := AssertErrorResponse(t, w, http.StatusLocked, "account_locked")
	assert.True(t, strings.HasPrefix(resp.Message, "Account temporarily locked. Try again in "), resp.Message)
	assert.False(t, f.state(t, id).IsAuthenticated)
}

func TestGateHandler_Login_AlertFailureIsRecorded(t *testing.T) {
	f := newGateFixture(t)
	f.alerter.SendLockoutAlertFunc = func(ctx context.Context, alert notify.LockoutAlert) error {
		return errors.New("ses unavailable")
	}
	id := f.openTab(t)

	for i := 0; i < 3; i++ {
		f.login(t, id, "x", "y")
	}

	require.Eventually(t, func() bool {
		_, failed := f.alerts.counts()
		return failed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestGateHandler_Login_AlreadySignedIn(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)
	require.Equal(t, http.StatusOK, f.login(t, id, adminIdentifier, adminSecret).Code)

	w := f.login(t, id, adminIdentifier, adminSecret)

	resp := AssertErrorResponse(t, w, http.StatusConflict, "already_signed_in")
	assert.Equal(t, "Already signed in.", resp.Message)
}

func TestGateHandler_Login_InvalidBody(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"identifier":`},
		{"unknown field", `{"identifier":"a","secret":"b","otp":"123456"}`},
		{"identifier too long", `{"identifier":"` + strings.Repeat("a", 129) + `","secret":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			id.apply(req)
			w := httptest.NewRecorder()
			f.handler.Login(w, req)

			AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}

	assert.Equal(t, 0, f.state(t, id).Attempts, "rejected bodies must not count as attempts")
}

func TestGateHandler_Login_TabsAreIndependent(t *testing.T) {
	f := newGateFixture(t)
	first := f.openTab(t)
	require.Equal(t, http.StatusOK, f.login(t, first, adminIdentifier, adminSecret).Code)

	// Second tab of the same browser
	req := httptest.NewRequest(http.MethodGet, "/auth/state", nil)
	tabIdentity{browserID: first.browserID}.apply(req)
	w := httptest.NewRecorder()
	f.handler.State(w, req)
	second := tabIdentity{browserID: first.browserID, tabID: w.Header().Get(auth.TabIDHeader)}
	require.NotEqual(t, first.tabID, second.tabID)

	assert.False(t, f.state(t, second).IsAuthenticated, "a session is never adopted by another tab")
	assert.True(t, f.state(t, first).IsAuthenticated)
}

func TestGateHandler_Logout(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)
	require.Equal(t, http.StatusOK, f.login(t, id, adminIdentifier, adminSecret).Code)

	w := f.logout(t, id)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Logged out.", resp.Message)
	assert.False(t, resp.State.IsAuthenticated)
	assert.Empty(t, resp.State.Token)

	_, ok := f.registry.ActiveSession(context.Background(), id.browserID, id.tabID)
	assert.False(t, ok)
}

func TestGateHandler_Logout_NotSignedIn(t *testing.T) {
	f := newGateFixture(t)
	id := f.openTab(t)

	w := f.logout(t, id)

	resp := AssertErrorResponse(t, w, http.StatusConflict, "not_authenticated")
	assert.Equal(t, "Not signed in.", resp.Message)
}

func TestGateHandler_AcquireFailure(t *testing.T) {
	f := newGateFixture(t)
	f.registry.Close()

	w := httptest.NewRecorder()
	f.handler.State(w, httptest.NewRequest(http.MethodGet, "/auth/state", nil))

	AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
}
