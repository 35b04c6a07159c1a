// Package web serves the application pages.
//
//	GET /            landing page, redirects signed-in users to /dashboard
//	GET /dashboard   protected profile page, shows queued toasts once
//	GET /api/me      current claims and the stored user record as JSON
//
// Pages read the auth state resolved by session.Middleware. A missing or
// unreachable user record never blocks rendering; the page falls back to
// the session claims.
//
// ConfigErrorHandler replaces the whole application when the identity
// provider is not configured.
package web
