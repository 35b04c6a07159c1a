package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Dialect     Dialect
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open opens and pings the users database
func Open(config ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open(config.Dialect.DriverName(), config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", config.Dialect, err)
	}

	if config.Dialect == DialectSQLite {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxConns)
		db.SetMaxIdleConns(config.MinConns)
		db.SetConnMaxLifetime(config.MaxLifetime)
		db.SetConnMaxIdleTime(config.MaxIdleTime)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", config.Dialect, err)
	}

	return db, nil
}
