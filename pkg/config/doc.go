// Package config loads application configuration from environment
// variables, optionally layered over a YAML file named by
// IDSYNC_CONFIG_FILE. Environment variables always win.
//
// Identity provider (required):
//
//	IDSYNC_AUTH_DOMAIN="example.auth0.com"
//	IDSYNC_AUTH_CLIENT_ID="..."
//	IDSYNC_AUTH_CLIENT_SECRET="..."
//	IDSYNC_AUTH_AUDIENCE=""
//	IDSYNC_AUTH_SCOPES="openid profile email"
//
// When either required variable is unset LoadConfig returns a
// *ConfigError alongside the config. The server then renders the static
// configuration error page and never contacts the provider.
//
// Server:
//
//	IDSYNC_PORT="8080"
//	IDSYNC_HEALTH_PORT="9090"
//	IDSYNC_BASE_URL="http://localhost:8080"
//	IDSYNC_POST_LOGIN_PATH="/dashboard"
//
// User store:
//
//	IDSYNC_STORE_TYPE="memory"  # memory, postgres, sqlite
//	IDSYNC_POSTGRES_URL="postgres://..."
//	IDSYNC_SQLITE_PATH="idsync.db"
//
// Sessions and sync:
//
//	IDSYNC_REDIS_URL=""          # empty keeps sessions in process
//	IDSYNC_SESSION_TTL="24h"
//	IDSYNC_SECURE_COOKIES="false"
//	IDSYNC_SYNC_WORKERS="4"
//	IDSYNC_SYNC_TIMEOUT="10s"
//
// Observability:
//
//	IDSYNC_LOG_LEVEL="info"
//	IDSYNC_METRICS_ENABLED="true"
//	IDSYNC_OTEL_ENABLED="false"
//	IDSYNC_OTEL_ENDPOINT="localhost:4317"
//
// The YAML file uses the same settings under server, auth, users,
// session, sync and observability keys; attribute mapping
// (auth.attributes) is file-only. Watcher reloads the file on change.
package config
