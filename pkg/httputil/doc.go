// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteUnauthorized(w, "login required")
//	httputil.WriteServiceUnavailable(w, "not ready")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.SecurityHeadersMiddleware,
//	)
//
// RequestIDMiddleware stores the ID in the context (pkg/contextkeys) so sync
// failures raised later in the request can be correlated with it.
package httputil
