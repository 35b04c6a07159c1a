// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/idsync/pkg/contextkeys"
//	ctx = contextkeys.WithSessionID(ctx, sess.ID)
//	sessionID := contextkeys.GetSessionID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionIDKey contains the browser session ID string
	// Set by: session.Middleware (pkg/session/middleware.go), sso callback
	// Used by: notify.FlashNotifier to route sync failure toasts
	// Type: string
	SessionIDKey Key = "session_id"

	// AuthStateKey contains identity.AuthState
	// Set by: session.Middleware
	// Required by: web handlers rendering the current user
	// Type: identity.AuthState
	AuthStateKey Key = "auth_state"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, sync failure diagnostics
	// Type: string
	RequestIDKey Key = "request_id"

	// SubjectIDKey contains the authenticated subject ID string
	// Set by: session.Middleware after the session resolves
	// Used by: Logger
	// Type: string
	SubjectIDKey Key = "subject_id"
)

// WithSessionID adds the session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithAuthState adds the resolved auth state to the context
func WithAuthState(ctx context.Context, state interface{}) context.Context {
	return context.WithValue(ctx, AuthStateKey, state)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSubjectID adds the subject ID to the context
func WithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, SubjectIDKey, subjectID)
}

// GetSessionID retrieves the session ID from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSubjectID retrieves the subject ID from context
func GetSubjectID(ctx context.Context) string {
	if subjectID, ok := ctx.Value(SubjectIDKey).(string); ok {
		return subjectID
	}
	return ""
}
