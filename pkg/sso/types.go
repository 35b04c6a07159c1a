package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/idsync/pkg/identity"
)

// DefaultScopes are requested when none are configured
var DefaultScopes = []string{"openid", "profile", "email"}

var (
	// ErrMissingCode is returned when the callback carries no authorization code
	ErrMissingCode = errors.New("missing authorization code")

	// ErrMissingIDToken is returned when the token response has no id_token
	ErrMissingIDToken = errors.New("missing id_token in response")
)

// Config describes the identity provider tenant
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Audience     string
	RedirectURL  string
	Scopes       []string
	UseUserInfo  bool
	Attributes   identity.AttributeMap

	// Issuer overrides the issuer derived from Domain
	Issuer string
}

// IssuerURL returns the OpenID issuer for the tenant
func (c Config) IssuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	domain := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(c.Domain, "https://"), "http://"), "/")
	return fmt.Sprintf("https://%s/", domain)
}

// ValidateConfig validates the provider configuration
func (c Config) ValidateConfig() error {
	if c.Domain == "" && c.Issuer == "" {
		return fmt.Errorf("domain is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}

	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	for _, scope := range scopes {
		if scope == "openid" {
			return nil
		}
	}
	return fmt.Errorf("'openid' scope is required for OIDC")
}

// Provider is the identity provider boundary used by the handlers
type Provider interface {
	// AuthCodeURL returns the authorization URL for a login attempt
	AuthCodeURL(state, verifier string) string

	// Exchange redeems an authorization code and returns the claims snapshot
	Exchange(ctx context.Context, code, verifier string) (identity.Claims, error)

	// LogoutURL returns the provider logout URL that ends at returnTo
	LogoutURL(returnTo string) string
}
