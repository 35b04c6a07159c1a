package session

import (
	"net/http"
	"time"
)

// CookieName is the browser cookie carrying the session ID
const CookieName = "idsync_session"

// CookieOptions controls the attributes of issued cookies
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

// SetCookie issues the session cookie
func SetCookie(w http.ResponseWriter, id string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie returns the session ID sent by the browser, or ""
func ReadCookie(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
