// Package observer detects transitions of the authentication state and hands
// the new claims snapshot to a sync trigger.
//
// A transition qualifies when the auth flag or the claims snapshot changed and
// the new state is authenticated with claims present. Unchanged states never
// fire, so re-rendering a page or replaying the same session is free.
//
// Two shapes are provided:
//
//   - Detector and Watch for a single ordered stream of states
//   - Observer for many concurrent browser sessions keyed by session ID
//
// The observer does not inspect claim contents. Validation, if any, belongs to
// the storage boundary.
package observer
