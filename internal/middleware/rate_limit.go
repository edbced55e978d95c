package middleware

import (
	"net/http"
	"strconv"
	"time"

	pkghttp "github.com/BradenHooton/admingate/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultLoginRateLimit returns the default limit for credential submissions.
// The gate's own lockout handles per-tab guessing; this caps a single client across tabs.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// RateLimitByClientIP rate limits requests by client IP, honoring trusted proxies.
func RateLimitByClientIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	if config.Requests <= 0 {
		config = DefaultLoginRateLimit()
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	retryAfter := strconv.Itoa(int(config.Window.Seconds()))

	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
