package users

import (
	"context"
	"database/sql"
	"fmt"
)

var schemas = map[Dialect]string{
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			subject_id TEXT NOT NULL UNIQUE,
			email TEXT,
			display_name TEXT,
			avatar_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject_id TEXT NOT NULL UNIQUE,
			email TEXT,
			display_name TEXT,
			avatar_url TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL
		)`,
}

// Migrate creates the users table if it does not exist
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	schema, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}
