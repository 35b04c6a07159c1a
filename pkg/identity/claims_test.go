package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClaims_Same(t *testing.T) {
	now := time.Now()
	base := Claims{SubjectID: "auth0|123", Email: "a@x.com", DisplayName: "Ann", IssuedAt: now}

	tests := []struct {
		name   string
		mutate func(c *Claims)
		want   bool
	}{
		{name: "identical", mutate: func(c *Claims) {}, want: true},
		{name: "same instant different location", mutate: func(c *Claims) { c.IssuedAt = now.UTC() }, want: true},
		{name: "display name changed", mutate: func(c *Claims) { c.DisplayName = "Annie" }, want: false},
		{name: "new snapshot", mutate: func(c *Claims) { c.IssuedAt = now.Add(time.Second) }, want: false},
		{name: "subject changed", mutate: func(c *Claims) { c.SubjectID = "auth0|456" }, want: false},
		{name: "avatar added", mutate: func(c *Claims) { c.AvatarURL = "https://x/a.png" }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.Equal(t, tt.want, base.Same(other))
		})
	}
}

func TestAuthState_Ready(t *testing.T) {
	claims := Claims{SubjectID: "auth0|123"}

	assert.False(t, Unauthenticated.Ready())
	assert.False(t, AuthState{Authenticated: true}.Ready())
	assert.False(t, AuthState{Claims: &claims}.Ready())
	assert.True(t, Authenticated(claims).Ready())
}

func TestAuthState_Same(t *testing.T) {
	c1 := Claims{SubjectID: "auth0|123", Email: "a@x.com"}
	c2 := Claims{SubjectID: "auth0|123", Email: "b@x.com"}

	assert.True(t, Unauthenticated.Same(AuthState{}))
	assert.True(t, Authenticated(c1).Same(Authenticated(c1)))
	assert.False(t, Authenticated(c1).Same(Authenticated(c2)))
	assert.False(t, Authenticated(c1).Same(AuthState{Claims: &c1}))
	assert.False(t, AuthState{Authenticated: true}.Same(Authenticated(c1)))
}

func TestAuthenticated_CopiesClaims(t *testing.T) {
	c := Claims{SubjectID: "auth0|123", DisplayName: "Ann"}
	state := Authenticated(c)
	c.DisplayName = "Changed"

	assert.Equal(t, "Ann", state.Claims.DisplayName)
}

func TestClaims_Initial(t *testing.T) {
	assert.Equal(t, "A", Claims{DisplayName: "ann"}.Initial())
	assert.Equal(t, "B", Claims{Email: "bob@x.com"}.Initial())
	assert.Equal(t, "U", Claims{}.Initial())
}
