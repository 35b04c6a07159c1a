package identity

import (
	"strings"
	"time"
)

// Claims is an immutable snapshot of the profile attributes asserted by the
// identity provider for the current session. An empty string means the claim
// was absent.
type Claims struct {
	SubjectID     string    `json:"sub"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"name,omitempty"`
	AvatarURL     string    `json:"picture,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Same reports whether c and other are the same snapshot.
func (c Claims) Same(other Claims) bool {
	return c.SubjectID == other.SubjectID &&
		c.Email == other.Email &&
		c.DisplayName == other.DisplayName &&
		c.AvatarURL == other.AvatarURL &&
		c.EmailVerified == other.EmailVerified &&
		c.IssuedAt.Equal(other.IssuedAt)
}

// Initial returns the first character used for avatar fallbacks.
func (c Claims) Initial() string {
	for _, s := range []string{c.DisplayName, c.Email} {
		if s = strings.TrimSpace(s); s != "" {
			return strings.ToUpper(string([]rune(s)[0]))
		}
	}
	return "U"
}

// AuthState is the pair observed by the session observer.
type AuthState struct {
	Authenticated bool
	Claims        *Claims
}

// Unauthenticated is the zero state.
var Unauthenticated = AuthState{}

// Authenticated builds a state carrying a copy of claims.
func Authenticated(claims Claims) AuthState {
	return AuthState{Authenticated: true, Claims: &claims}
}

// Ready reports whether the state is authenticated with claims available.
func (s AuthState) Ready() bool {
	return s.Authenticated && s.Claims != nil
}

// Same reports whether two states carry the same flag and claims snapshot.
func (s AuthState) Same(other AuthState) bool {
	if s.Authenticated != other.Authenticated {
		return false
	}
	if (s.Claims == nil) != (other.Claims == nil) {
		return false
	}
	if s.Claims == nil {
		return true
	}
	return s.Claims.Same(*other.Claims)
}
