// Package identity defines the identity claims snapshot produced by the
// identity provider and the authentication state observed by idsync.
//
// # Snapshots
//
// A Claims value is never mutated or merged. Each successful login callback
// yields a new snapshot with its own IssuedAt, so two snapshots with equal
// profile fields but different issue times are different states:
//
//	a := identity.Claims{SubjectID: "auth0|123", Email: "a@x.com", IssuedAt: t1}
//	b := a
//	b.IssuedAt = t2
//	a.Same(b) // false
//
// # Auth state
//
// AuthState pairs the authentication flag with the current snapshot. Only a
// Ready state (authenticated and claims present) is ever reconciled into the
// users table.
package identity
