package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/gatekeeper"
	"github.com/BradenHooton/admingate/internal/models"
	"github.com/BradenHooton/admingate/internal/notify"
	"github.com/BradenHooton/admingate/internal/store"
	pkgauth "github.com/BradenHooton/admingate/pkg/auth"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
	pkglogger "github.com/BradenHooton/admingate/pkg/logger"
)

const (
	adminIdentifier   = "VSVetrian"
	adminSecret       = "04910#VTS"
	adminRole         = "Super Admin"
	testSigningSecret = "handler-test-signing-secret-0123456789abcdef"
)

var testEpoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

var (
	credsOnce sync.Once
	testCreds *gatekeeper.CredentialSet
)

func testCredentials(t *testing.T) *gatekeeper.CredentialSet {
	t.Helper()
	credsOnce.Do(func() {
		hash, err := pkgauth.HashSecret(adminSecret, bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		testCreds, err = gatekeeper.NewCredentialSet([]models.Credential{
			{Identifier: adminIdentifier, SecretHash: hash, Role: adminRole},
		})
		if err != nil {
			panic(err)
		}
	})
	return testCreds
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAlerter records lockout alerts
type MockAlerter struct {
	SendLockoutAlertFunc func(ctx context.Context, alert notify.LockoutAlert) error

	mu     sync.Mutex
	alerts []notify.LockoutAlert
}

func (m *MockAlerter) SendLockoutAlert(ctx context.Context, alert notify.LockoutAlert) error {
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
	if m.SendLockoutAlertFunc == nil {
		return nil
	}
	return m.SendLockoutAlertFunc(ctx, alert)
}

func (m *MockAlerter) Sent() []notify.LockoutAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.LockoutAlert(nil), m.alerts...)
}

// MockAlertRecorder counts alert results
type MockAlertRecorder struct {
	mu     sync.Mutex
	sent   int
	failed int
}

func (m *MockAlertRecorder) RecordAlert(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		return
	}
	m.sent++
}

func (m *MockAlertRecorder) counts() (sent, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent, m.failed
}

// MockHealthChecker implements store.HealthChecker for testing
type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}

// gateFixture is a GateHandler over an in-memory registry and a fake clock
type gateFixture struct {
	clock    *testingclock.FakeClock
	registry *gatekeeper.Registry
	tokens   *auth.TokenManager
	alerter  *MockAlerter
	alerts   *MockAlertRecorder
	handler  *GateHandler
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	clk := testingclock.NewFakeClock(testEpoch)
	base := store.NewMemoryStore()
	t.Cleanup(base.Close)

	registry, err := gatekeeper.NewRegistry(gatekeeper.RegistryConfig{
		Policy:      gatekeeper.DefaultPolicy(),
		Credentials: testCredentials(t),
		Store:       base,
		Clock:       clk,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	f := &gateFixture{
		clock:    clk,
		registry: registry,
		tokens:   auth.NewTokenManager(testSigningSecret, clk),
		alerter:  &MockAlerter{},
		alerts:   &MockAlertRecorder{},
	}
	f.handler = NewGateHandler(GateConfig{
		Gates:       registry,
		Tokens:      f.tokens,
		Timing:      auth.NewTimingDelayWithClock(auth.TimingConfig{}, clk),
		Audit:       pkglogger.NewAuditLogger(discardLogger()),
		Alerter:     f.alerter,
		Alerts:      f.alerts,
		MaxAttempts: gatekeeper.DefaultPolicy().MaxAttempts,
		Clock:       clk,
		Logger:      discardLogger(),
	})
	return f
}

// tabIdentity is the cookie and header pair a browser tab sends
type tabIdentity struct {
	browserID string
	tabID     string
}

func (id tabIdentity) apply(r *http.Request) {
	if id.browserID != "" {
		r.AddCookie(&http.Cookie{Name: auth.BrowserCookieName, Value: id.browserID})
	}
	if id.tabID != "" {
		r.Header.Set(auth.TabIDHeader, id.tabID)
	}
}

// openTab performs GET /auth/state without identity and returns the ids the server issued
func (f *gateFixture) openTab(t *testing.T) tabIdentity {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.State(w, httptest.NewRequest(http.MethodGet, "/auth/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	id := tabIdentity{tabID: w.Header().Get(auth.TabIDHeader)}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.BrowserCookieName {
			id.browserID = c.Value
		}
	}
	require.NotEmpty(t, id.browserID, "browser cookie should be issued")
	require.True(t, gatekeeper.ValidTabID(id.tabID), "tab id should be issued")
	return id
}

func (f *gateFixture) login(t *testing.T, id tabIdentity, identifier, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Identifier: identifier, Secret: secret})
	id.apply(req)
	w := httptest.NewRecorder()
	f.handler.Login(w, req)
	return w
}

func (f *gateFixture) logout(t *testing.T, id tabIdentity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	id.apply(req)
	w := httptest.NewRecorder()
	f.handler.Logout(w, req)
	return w
}

func (f *gateFixture) state(t *testing.T, id tabIdentity) StateResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/state", nil)
	id.apply(req)
	w := httptest.NewRecorder()
	f.handler.State(w, req)

	var resp StateResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	return resp
}
