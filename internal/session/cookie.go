package session

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the cookie carrying the attribution session id.
// The click-record and resolve flows must agree on it.
const DefaultCookieName = "ref_sid"

// BackupHeader lets SPA clients replay a session id from local storage
// when the cookie was blocked or cleared.
const BackupHeader = "X-Referral-Session"

// SetSessionCookie writes the session cookie with the referral contract:
// Path=/, SameSite=Lax, HttpOnly, Secure on HTTPS origins (including
// behind a TLS-terminating proxy).
func SetSessionCookie(w http.ResponseWriter, r *http.Request, name, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   requestIsHTTPS(r),
	})
}

// SessionIDFromRequest extracts the session id from whichever carrier is
// present: cookie first, then the backup header, then a query parameter
// of the same name. First non-empty value wins.
func SessionIDFromRequest(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value
	}
	if v := r.Header.Get(BackupHeader); v != "" {
		return v
	}
	return r.URL.Query().Get(name)
}

func requestIsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
