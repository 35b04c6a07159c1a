package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/platinummonkey/idsync/pkg/config"
	"github.com/platinummonkey/idsync/pkg/httputil"
	"github.com/platinummonkey/idsync/pkg/middleware"
	"github.com/platinummonkey/idsync/pkg/notify"
	"github.com/platinummonkey/idsync/pkg/observability"
	"github.com/platinummonkey/idsync/pkg/observer"
	"github.com/platinummonkey/idsync/pkg/reconcile"
	"github.com/platinummonkey/idsync/pkg/session"
	"github.com/platinummonkey/idsync/pkg/sso"
	"github.com/platinummonkey/idsync/pkg/users"
	"github.com/platinummonkey/idsync/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// app holds the wired components shared by the HTTP servers and the
// background jobs.
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	log    *logrus.Logger

	registry *prometheus.Registry
	metrics  *observability.Metrics

	db    *sql.DB
	users users.Store

	redis       *redis.Client
	sessions    session.Store
	memSessions *session.MemoryStore

	dispatcher *reconcile.Dispatcher
	observer   *observer.Observer

	// nil when login throttling is disabled
	limiter    middleware.Limiter
	memLimiter *middleware.RateLimiter
}

// newApp opens the stores and builds the sync pipeline:
// session middleware -> observer -> dispatcher -> reconciler -> users store,
// with failures fanned out to the log and the session's flash queue.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger, log *logrus.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		log:      log,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)

	if err := a.openUsers(ctx); err != nil {
		return nil, err
	}
	if err := a.openSessions(); err != nil {
		a.close()
		return nil, err
	}

	a.openLimiter()

	notifier := notify.Multi{
		notify.NewLogNotifier(log),
		notify.NewFlashNotifier(a.sessions, log),
	}
	reconciler := reconcile.New(a.users,
		reconcile.WithNotifier(notifier),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(a.metrics),
	)

	// the pool outlives request and signal contexts; Shutdown drains it
	a.dispatcher = reconcile.NewDispatcher(context.Background(), reconciler, cfg.Sync.Workers, cfg.Sync.Timeout, log)

	obs, err := observer.New(cfg.Sync.ObserverCapacity, a.dispatcher.Dispatch, observer.WithMetrics(a.metrics))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create session observer: %w", err)
	}
	a.observer = obs

	return a, nil
}

func (a *app) openUsers(ctx context.Context) error {
	uc := a.cfg.Users

	var conn users.ConnectionConfig
	switch uc.Type {
	case config.StoreMemory:
		a.logger.Warn("Using in-memory user store; records are lost on restart")
		a.users = users.NewMemoryStore()
		return nil
	case config.StorePostgres:
		conn = users.ConnectionConfig{
			Dialect:  users.DialectPostgres,
			URL:      uc.PostgresURL,
			MaxConns: uc.PostgresMaxConns,
			MinConns: uc.PostgresMinConns,
			Timeout:  uc.PostgresTimeout,
		}
	case config.StoreSQLite:
		conn = users.ConnectionConfig{Dialect: users.DialectSQLite, URL: uc.SQLitePath}
	default:
		return fmt.Errorf("unsupported store type: %s", uc.Type)
	}

	db, err := users.Open(conn)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	if err := users.Migrate(ctx, db, conn.Dialect); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate user store: %w", err)
	}

	a.db = db
	a.users = users.NewSQLStore(db, conn.Dialect)
	a.logger.WithField("dialect", string(conn.Dialect)).Info("User store ready")
	return nil
}

func (a *app) openSessions() error {
	sc := a.cfg.Session
	if sc.RedisURL == "" {
		a.memSessions = session.NewMemoryStore(sc.Capacity, sc.TTL)
		a.sessions = a.memSessions
		return nil
	}

	client, err := session.NewRedisClient(sc.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	a.redis = client
	a.sessions = session.NewRedisStore(client, sc.TTL)
	return nil
}

// openLimiter shares the login budget through Redis when sessions live
// there, and keeps it in-process otherwise.
func (a *app) openLimiter() {
	sc := a.cfg.Server
	if sc.LoginRateLimit == 0 {
		return
	}
	rc := &middleware.RateLimitConfig{
		RequestsPerWindow: sc.LoginRateLimit,
		WindowDuration:    sc.LoginRateWindow,
		BurstSize:         sc.LoginRateBurst,
	}
	if a.redis != nil {
		a.limiter = middleware.NewDistributedRateLimiter(a.redis, rc, "idsync:login")
		return
	}
	a.memLimiter = middleware.NewRateLimiter(rc)
	a.limiter = a.memLimiter
}

// handler builds the application router. The provider is passed in so the
// whole stack can be exercised without a live identity provider.
func (a *app) handler(provider sso.Provider) http.Handler {
	router := mux.NewRouter()
	if a.cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(a.metrics))
	}
	if a.limiter != nil {
		router.Use(middleware.Throttle(a.limiter, a.cfg.Server.LoginRateWindow, a.logger, a.metrics, "/login", "/callback"))
	}
	router.Use(session.Middleware(a.sessions, a.observer, a.log))

	sso.NewHandlers(provider, a.sessions, a.observer, sso.HandlerConfig{
		BaseURL:       a.cfg.Server.BaseURL,
		PostLoginPath: a.cfg.Server.PostLoginPath,
		SecureCookies: a.cfg.Session.SecureCookies,
		SessionTTL:    a.cfg.Session.TTL,
	}, a.logger, a.metrics).RegisterRoutes(router)

	web.NewHandlers(a.users, a.sessions, a.logger).RegisterRoutes(router)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(a.logger),
		httputil.LoggingMiddleware(a.logger),
		httputil.SecurityHeadersMiddleware,
	)
	return otelhttp.NewHandler(chain(router), "idsync")
}

// healthHandler serves probes and, when enabled, Prometheus metrics
func (a *app) healthHandler() http.Handler {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(a.db, a.redis, a.cfg.Observability.OTelServiceVersion))
	if a.cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.MetricsHandler(a.registry))
	}
	return mux
}

// providerConfig maps the loaded settings onto the OIDC client config
func providerConfig(cfg *config.Config) sso.Config {
	return sso.Config{
		Domain:       cfg.Auth.Domain,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Audience:     cfg.Auth.Audience,
		RedirectURL:  cfg.CallbackURL(),
		Scopes:       cfg.Auth.Scopes,
		UseUserInfo:  cfg.Auth.UseUserInfo,
		Attributes:   cfg.Auth.Attributes,
		Issuer:       cfg.Auth.Issuer,
	}
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close user database")
		}
	}
}
