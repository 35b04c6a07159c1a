package sso

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Temporary cookies carried between /login and /callback
const (
	stateCookie    = "idsync_state"
	verifierCookie = "idsync_verifier"
	returnCookie   = "idsync_return_to"

	flowCookieMaxAge = 600
)

// generateState returns a random URL-safe state token
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateVerifier returns a PKCE code verifier
func generateVerifier() string {
	return oauth2.GenerateVerifier()
}

func setFlowCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   flowCookieMaxAge,
	})
}

func clearFlowCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{stateCookie, verifierCookie, returnCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SanitizeReturnTo accepts only same-origin absolute paths and returns ""
// for anything else.
func SanitizeReturnTo(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return ""
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return u.RequestURI()
}
