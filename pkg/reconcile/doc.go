// Package reconcile mirrors identity claims into the users table.
//
// Sync is an idempotent upsert keyed by subject ID with full replacement of
// the profile fields. It is fire-and-forget: a failure becomes a SyncFailure
// that is logged for operators, counted, and sent to the notifier once. It is
// never returned to the caller and never retried; the next qualifying
// session transition syncs again.
//
// Dispatcher moves Sync off the request path onto a worker pool.
package reconcile
