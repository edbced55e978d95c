package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/BradenHooton/admingate/pkg/http"
)

func mustIPConfig(t *testing.T, cidrs ...string) *pkghttp.IPConfig {
	t.Helper()
	cfg, err := pkghttp.NewIPConfig(cidrs)
	require.NoError(t, err)
	return cfg
}

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "10.0.0.0/8", "127.0.0.1/32"))

	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_TrustedProxy_UsesForwardedHop(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.7")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "10.0.0.0/8"))

	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_SpoofedLeftmostHopIgnored(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	// Client prepended a fake address; the proxy appended the real peer
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 198.51.100.9")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "10.0.0.0/8"))

	assert.Equal(t, "198.51.100.9", ip)
}

func TestExtractClientIP_TrustedProxy_FallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:8080"
	req.Header.Set("X-Real-IP", "203.0.113.77")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "127.0.0.1/32"))

	assert.Equal(t, "203.0.113.77", ip)
}

func TestExtractClientIP_IPv6(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[fd00::1]:443"
	req.Header.Set("X-Forwarded-For", "2001:db8::42")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "fd00::/8"))

	assert.Equal(t, "2001:db8::42", ip)
}

func TestExtractClientIP_NilConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	assert.Equal(t, "192.0.2.1", pkghttp.ExtractClientIP(req, nil))
}

func TestNewIPConfig_RejectsInvalidCIDR(t *testing.T) {
	_, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "not-a-cidr"})
	assert.Error(t, err)

	cfg, err := pkghttp.NewIPConfig([]string{"", " "})
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Identifier string `json:"identifier"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"valid", `{"identifier":"VSVetrian"}`, ""},
		{"empty", ``, "empty"},
		{"unknown field", `{"identifier":"a","role":"x"}`, "malformed"},
		{"trailing object", `{"identifier":"a"}{"identifier":"b"}`, "single JSON object"},
		{"too large", `{"identifier":"` + strings.Repeat("a", 200) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.payload))
			w := httptest.NewRecorder()
			var dst body

			err := pkghttp.DecodeJSON(w, req, &dst, 128)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "VSVetrian", dst.Identifier)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
