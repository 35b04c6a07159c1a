// Package session keeps server-side browser sessions and their flash queues.
//
// A session is created by the login callback and holds the claims snapshot
// of that login. Sessions live in Redis (shared across replicas) or in an
// in-process expiring LRU for single-instance deployments.
//
// Middleware turns the session cookie into an identity.AuthState, places it
// in the request context, and reports it to the session observer.
package session
