// Package sso signs users in through an OpenID Connect identity provider.
//
// # Overview
//
// The provider is an Auth0-style tenant identified by a domain and a client
// ID. The issuer https://<domain>/ is discovered at startup and the
// authorization code flow runs with PKCE (S256) and a state cookie.
//
// # Routes
//
//	GET  /login?returnTo=/path   start a login, remembering a local return path
//	GET  /callback               finish the login, create a session, redirect
//	GET  /logout, POST /logout   end the session, redirect through the provider
//
// A login lands on the remembered path or on the post-login path
// (/dashboard by default). Logout returns to the application origin.
//
// # Usage Example
//
//	provider, err := sso.NewOIDCProvider(ctx, sso.Config{
//		Domain:      "tenant.auth0.com",
//		ClientID:    clientID,
//		RedirectURL: "https://app.example.com/callback",
//	})
//	handlers := sso.NewHandlers(provider, sessions, observer, sso.HandlerConfig{
//		BaseURL: "https://app.example.com",
//	}, logger, metrics)
//	handlers.RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/session: Session storage and cookies
//   - pkg/observer: Sync triggering on new sessions
package sso
