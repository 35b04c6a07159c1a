package sso

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/platinummonkey/idsync/pkg/identity"
	"golang.org/x/oauth2"
)

// OIDCProvider implements Provider over OpenID Connect discovery
type OIDCProvider struct {
	config       Config
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	endSession   string
	now          func() time.Time
}

// NewOIDCProvider discovers the issuer and builds the OAuth2 client
func NewOIDCProvider(ctx context.Context, config Config) (*OIDCProvider, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.Attributes == (identity.AttributeMap{}) {
		config.Attributes = identity.DefaultAttributeMap()
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL())
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse provider metadata: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: config.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
	}

	return &OIDCProvider{
		config:       config,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		endSession:   metadata.EndSessionEndpoint,
		now:          time.Now,
	}, nil
}

// AuthCodeURL returns the authorization URL with a PKCE S256 challenge
func (p *OIDCProvider) AuthCodeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if p.config.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.config.Audience))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

// Exchange redeems code, verifies the ID token and maps its claims
func (p *OIDCProvider) Exchange(ctx context.Context, code, verifier string) (identity.Claims, error) {
	if code == "" {
		return identity.Claims{}, ErrMissingCode
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return identity.Claims{}, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return identity.Claims{}, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.Claims{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return identity.Claims{}, fmt.Errorf("failed to parse claims: %w", err)
	}

	if p.config.UseUserInfo {
		if info, err := p.fetchUserInfo(ctx, oauth2Token); err == nil {
			for k, v := range info {
				if _, exists := raw[k]; !exists {
					raw[k] = v
				}
			}
		}
	}

	issuedAt := idToken.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = p.now()
	}

	claims := identity.FromClaims(raw, p.config.Attributes, issuedAt)
	if claims.SubjectID == "" {
		claims.SubjectID = idToken.Subject
	}
	return claims, nil
}

// fetchUserInfo fetches additional user information from userinfo endpoint
func (p *OIDCProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, err
	}

	var claims map[string]interface{}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// LogoutURL returns the RP-initiated logout URL. The discovered
// end_session_endpoint is used when the issuer publishes one, otherwise the
// Auth0 /v2/logout endpoint of the tenant.
func (p *OIDCProvider) LogoutURL(returnTo string) string {
	if p.endSession != "" {
		q := url.Values{}
		q.Set("client_id", p.config.ClientID)
		q.Set("post_logout_redirect_uri", returnTo)
		return appendQuery(p.endSession, q)
	}

	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("returnTo", returnTo)
	return strings.TrimSuffix(p.config.IssuerURL(), "/") + "/v2/logout?" + q.Encode()
}

func appendQuery(endpoint string, q url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + q.Encode()
}
