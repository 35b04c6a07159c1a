package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken by a SQLStore
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	return string(d)
}

// rebind rewrites ? placeholders into $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertQuery = `
		INSERT INTO users (subject_id, email, display_name, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject_id) DO UPDATE
		SET email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`

const getQuery = `
		SELECT subject_id, email, display_name, avatar_url, created_at, updated_at
		FROM users
		WHERE subject_id = ?
	`

// SQLStore is a Store backed by a users table in Postgres or SQLite
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates a store over an open database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB returns the underlying connection pool
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Upsert writes the record in a single INSERT ... ON CONFLICT statement,
// so the database provides per-key atomicity.
func (s *SQLStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil || record.SubjectID == "" {
		return ErrMissingSubject
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(upsertQuery),
		record.SubjectID, record.Email, record.DisplayName, record.AvatarURL, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", record.SubjectID, err)
	}

	return nil
}

// Get retrieves a record by subject ID
func (s *SQLStore) Get(ctx context.Context, subjectID string) (*Record, error) {
	record := &Record{}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(getQuery), subjectID).Scan(
		&record.SubjectID, &record.Email, &record.DisplayName, &record.AvatarURL,
		&record.CreatedAt, &record.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", subjectID, err)
	}

	return record, nil
}

// Count returns the number of user records
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
