package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// BrowserCookieName identifies the browser-wide storage scope
	BrowserCookieName = "admin_browser"
	// TabIDHeader carries the tab-scoped identifier on every request
	TabIDHeader = "X-Tab-ID"

	browserCookieMaxAge = 365 * 24 * 60 * 60
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetBrowserCookie stores the browser scope id in an httpOnly cookie
func SetBrowserCookie(w http.ResponseWriter, browserID string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     BrowserCookieName,
		Value:    browserID,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(browserCookieMaxAge * time.Second),
		MaxAge:   browserCookieMaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetBrowserCookie returns the browser scope id if the cookie holds a well-formed uuid
func GetBrowserCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(BrowserCookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// EnsureBrowserID returns the request's browser id, issuing a new cookie when it is missing
func EnsureBrowserID(w http.ResponseWriter, r *http.Request, config CookieConfig) string {
	if id, ok := GetBrowserCookie(r); ok {
		return id
	}
	id := uuid.New().String()
	SetBrowserCookie(w, id, config)
	return id
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
