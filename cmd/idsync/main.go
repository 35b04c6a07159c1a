package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/platinummonkey/idsync/pkg/config"
	"github.com/platinummonkey/idsync/pkg/observability"
	"github.com/platinummonkey/idsync/pkg/sso"
	"github.com/platinummonkey/idsync/pkg/web"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "idsync: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if cfg == nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	log := newLogrus(cfg.Observability.Level())

	if cfgErr, ok := config.IsConfigError(err); ok {
		logger.WithField("missing", cfgErr.Missing).Error("Identity provider is not configured")
		return serveConfigError(ctx, cfg, cfgErr, logger)
	}

	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	// releases whatever was registered when startup fails part way
	defer func() { _ = sm.Shutdown() }()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	sm.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	a, err := newApp(ctx, cfg, logger, log)
	if err != nil {
		return err
	}
	sm.Register("stores", func(context.Context) error {
		a.close()
		return nil
	})

	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		a.metrics.MirrorTo(otelMetrics)
	}

	provider, err := sso.NewOIDCProvider(ctx, providerConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	sm.Register("sync dispatcher", func(context.Context) error {
		return a.dispatcher.Shutdown(cfg.Sync.Timeout)
	})

	janitor, err := a.startJanitor(cfg.Sync.JanitorSchedule)
	if err != nil {
		return err
	}
	sm.Register("session janitor", func(ctx context.Context) error {
		select {
		case <-janitor.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	appServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler(provider),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           a.healthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	sm.Register("health server", healthServer.Shutdown)
	sm.Register("app server", appServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.File != "" {
		watcher, err := config.NewWatcher(cfg.File, func(next *config.Config) {
			level := next.Observability.Level()
			logger.SetLevel(level)
			log.SetLevel(logrusLevel(level))
			logger.WithField("level", level.String()).Info("Log level updated")
		}, logger)
		if err != nil {
			return err
		}
		watchCtx, stopWatch := context.WithCancel(gctx)
		sm.Register("config watcher", func(context.Context) error {
			stopWatch()
			return nil
		})
		g.Go(func() error { return watcher.Run(watchCtx) })
	}

	g.Go(func() error { return serve(appServer, logger, "app") })
	g.Go(func() error { return serve(healthServer, logger, "health") })
	g.Go(func() error { return sm.WaitForShutdown(gctx) })

	return g.Wait()
}

// serveConfigError renders the configuration error page on every route
// until shutdown. The identity provider is never contacted in this mode.
func serveConfigError(ctx context.Context, cfg *config.Config, cfgErr *config.ConfigError, logger *observability.Logger) error {
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           web.ConfigErrorHandler(cfgErr.Missing),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	sm.Register("app server", server.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(server, logger, "app") })
	g.Go(func() error { return sm.WaitForShutdown(gctx) })
	return g.Wait()
}

func serve(server *http.Server, logger *observability.Logger, name string) error {
	logger.WithFields(map[string]interface{}{"server": name, "addr": server.Addr}).Info("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", name, err)
	}
	return nil
}

func newLogrus(level observability.LogLevel) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrusLevel(level))
	return log
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
