// Package users stores the durable mirror of each user's identity claims.
//
// # Overview
//
// A users row is keyed by the provider-issued subject identifier. Writes go
// through Store.Upsert, which inserts a row on first sync and afterwards
// replaces email, display_name, avatar_url and updated_at wholesale. Rows
// are never deleted here.
//
// # Backends
//
// SQLStore speaks two dialects over database/sql:
//
//	db, err := users.Open(users.ConnectionConfig{
//		Dialect:  users.DialectPostgres,
//		URL:      "postgres://localhost/idsync?sslmode=disable",
//		MaxConns: 10,
//	})
//	if err := users.Migrate(ctx, db, users.DialectPostgres); err != nil { ... }
//	store := users.NewSQLStore(db, users.DialectPostgres)
//
// Both dialects use a single INSERT ... ON CONFLICT (subject_id) DO UPDATE
// statement, so concurrent upserts for the same subject never produce a
// second row. MemoryStore offers the same contract in process.
package users
