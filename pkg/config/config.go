package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/observability"
	"gopkg.in/yaml.v3"
)

// Required identity provider settings
const (
	EnvAuthDomain   = "IDSYNC_AUTH_DOMAIN"
	EnvAuthClientID = "IDSYNC_AUTH_CLIENT_ID"
	EnvConfigFile   = "IDSYNC_CONFIG_FILE"
)

// Store types
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// ConfigError reports missing identity provider settings. It is fatal
// before authentication and is shown to the user as a static page.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "configuration error: missing required settings: " + strings.Join(e.Missing, ", ")
}

// IsConfigError reports whether err is or wraps a *ConfigError
func IsConfigError(err error) (*ConfigError, bool) {
	var cfgErr *ConfigError
	ok := errors.As(err, &cfgErr)
	return cfgErr, ok
}

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Users         UsersConfig         `yaml:"users"`
	Session       SessionConfig       `yaml:"session"`
	Sync          SyncConfig          `yaml:"sync"`
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML overlay this config was read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// BaseURL is the public application origin; the callback and the
	// logout return address are derived from it.
	BaseURL       string `yaml:"base_url"`
	PostLoginPath string `yaml:"post_login_path"`

	// Per client IP throttling of /login and /callback. Zero disables it.
	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`
	LoginRateBurst  int           `yaml:"login_rate_burst"`
}

// AuthConfig holds the identity provider settings
type AuthConfig struct {
	Domain       string                `yaml:"domain"`
	ClientID     string                `yaml:"client_id"`
	ClientSecret string                `yaml:"client_secret"`
	Audience     string                `yaml:"audience"`
	Issuer       string                `yaml:"issuer"`
	Scopes       []string              `yaml:"scopes"`
	UseUserInfo  bool                  `yaml:"use_userinfo"`
	Attributes   identity.AttributeMap `yaml:"attributes"`
}

// UsersConfig selects and configures the user record store
type UsersConfig struct {
	Type             string        `yaml:"type"`
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresMinConns int           `yaml:"postgres_min_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`
	SQLitePath       string        `yaml:"sqlite_path"`
}

// SessionConfig configures the session store
type SessionConfig struct {
	RedisURL      string        `yaml:"redis_url"`
	TTL           time.Duration `yaml:"ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
	Capacity      int           `yaml:"capacity"`
}

// SyncConfig configures the observer and the background reconciler
type SyncConfig struct {
	Workers          int           `yaml:"workers"`
	Timeout          time.Duration `yaml:"timeout"`
	ObserverCapacity int           `yaml:"observer_capacity"`
	JanitorSchedule  string        `yaml:"janitor_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel, falling back to info
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, _ := observability.ParseLogLevel(o.LogLevel)
	return level
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			BaseURL:         "http://localhost:8080",
			PostLoginPath:   "/dashboard",
			LoginRateLimit:  30,
			LoginRateWindow: time.Minute,
			LoginRateBurst:  10,
		},
		Auth: AuthConfig{
			Scopes:     []string{"openid", "profile", "email"},
			Attributes: identity.DefaultAttributeMap(),
		},
		Users: UsersConfig{
			Type:             StoreMemory,
			PostgresMaxConns: 10,
			PostgresMinConns: 2,
			PostgresTimeout:  5 * time.Second,
			SQLitePath:       "idsync.db",
		},
		Session: SessionConfig{
			TTL:      24 * time.Hour,
			Capacity: 10000,
		},
		Sync: SyncConfig{
			Workers:          4,
			Timeout:          10 * time.Second,
			ObserverCapacity: 10000,
			JanitorSchedule:  "@every 1m",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "idsync",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration from the optional YAML file named by
// IDSYNC_CONFIG_FILE and then from environment variables, which win.
//
// When the identity provider settings are missing it returns the loaded
// config together with a *ConfigError so the caller can still bind its
// listener and render the error page. Any other problem returns a nil
// config.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if missing := cfg.missingAuth(); len(missing) > 0 {
		return cfg, &ConfigError{Missing: missing}
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

// loadEnv overlays environment variables on the current values
func (c *Config) loadEnv() {
	s := &c.Server
	s.Host = getEnv("IDSYNC_HOST", s.Host)
	s.Port = getEnv("IDSYNC_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("IDSYNC_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("IDSYNC_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("IDSYNC_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("IDSYNC_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("IDSYNC_HEALTH_PORT", s.HealthPort)
	s.BaseURL = strings.TrimRight(getEnv("IDSYNC_BASE_URL", s.BaseURL), "/")
	s.PostLoginPath = getEnv("IDSYNC_POST_LOGIN_PATH", s.PostLoginPath)
	s.LoginRateLimit = getEnvInt("IDSYNC_LOGIN_RATE_LIMIT", s.LoginRateLimit)
	s.LoginRateWindow = getEnvDuration("IDSYNC_LOGIN_RATE_WINDOW", s.LoginRateWindow)
	s.LoginRateBurst = getEnvInt("IDSYNC_LOGIN_RATE_BURST", s.LoginRateBurst)

	a := &c.Auth
	a.Domain = getEnv(EnvAuthDomain, a.Domain)
	a.ClientID = getEnv(EnvAuthClientID, a.ClientID)
	a.ClientSecret = getEnv("IDSYNC_AUTH_CLIENT_SECRET", a.ClientSecret)
	a.Audience = getEnv("IDSYNC_AUTH_AUDIENCE", a.Audience)
	a.Issuer = getEnv("IDSYNC_AUTH_ISSUER", a.Issuer)
	a.Scopes = getEnvList("IDSYNC_AUTH_SCOPES", a.Scopes)
	a.UseUserInfo = getEnvBool("IDSYNC_AUTH_USE_USERINFO", a.UseUserInfo)

	u := &c.Users
	u.Type = strings.ToLower(getEnv("IDSYNC_STORE_TYPE", u.Type))
	u.PostgresURL = getEnv("IDSYNC_POSTGRES_URL", u.PostgresURL)
	u.PostgresMaxConns = getEnvInt("IDSYNC_POSTGRES_MAX_CONNS", u.PostgresMaxConns)
	u.PostgresMinConns = getEnvInt("IDSYNC_POSTGRES_MIN_CONNS", u.PostgresMinConns)
	u.PostgresTimeout = getEnvDuration("IDSYNC_POSTGRES_TIMEOUT", u.PostgresTimeout)
	u.SQLitePath = getEnv("IDSYNC_SQLITE_PATH", u.SQLitePath)

	ss := &c.Session
	ss.RedisURL = getEnv("IDSYNC_REDIS_URL", ss.RedisURL)
	ss.TTL = getEnvDuration("IDSYNC_SESSION_TTL", ss.TTL)
	ss.SecureCookies = getEnvBool("IDSYNC_SECURE_COOKIES", ss.SecureCookies)
	ss.Capacity = getEnvInt("IDSYNC_SESSION_CAPACITY", ss.Capacity)

	sy := &c.Sync
	sy.Workers = getEnvInt("IDSYNC_SYNC_WORKERS", sy.Workers)
	sy.Timeout = getEnvDuration("IDSYNC_SYNC_TIMEOUT", sy.Timeout)
	sy.ObserverCapacity = getEnvInt("IDSYNC_OBSERVER_CAPACITY", sy.ObserverCapacity)
	sy.JanitorSchedule = getEnv("IDSYNC_JANITOR_SCHEDULE", sy.JanitorSchedule)

	o := &c.Observability
	o.LogLevel = getEnv("IDSYNC_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("IDSYNC_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("IDSYNC_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("IDSYNC_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("IDSYNC_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("IDSYNC_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("IDSYNC_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("IDSYNC_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func (c *Config) missingAuth() []string {
	var missing []string
	if c.Auth.Domain == "" {
		missing = append(missing, EnvAuthDomain)
	}
	if c.Auth.ClientID == "" {
		missing = append(missing, EnvAuthClientID)
	}
	return missing
}

// CallbackURL is the redirect URI registered with the identity provider
func (c *Config) CallbackURL() string {
	return c.Server.BaseURL + "/callback"
}

// Validate checks if the configuration is valid. Missing identity provider
// settings are reported separately by LoadConfig.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("base URL must be an absolute http(s) URL: %q", c.Server.BaseURL)
	}
	if !strings.HasPrefix(c.Server.PostLoginPath, "/") {
		return fmt.Errorf("post-login path must start with /: %q", c.Server.PostLoginPath)
	}
	if c.Server.LoginRateLimit < 0 || c.Server.LoginRateBurst < 0 {
		return fmt.Errorf("login rate limit and burst must not be negative")
	}
	if c.Server.LoginRateLimit > 0 && c.Server.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate window must be positive when rate limiting is enabled")
	}

	switch c.Users.Type {
	case StoreMemory:
	case StorePostgres:
		if c.Users.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	case StoreSQLite:
		if c.Users.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, postgres, or sqlite)", c.Users.Type)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync workers must be at least 1")
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync timeout must be positive")
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma or space separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
