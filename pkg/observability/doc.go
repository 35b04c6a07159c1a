// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry export, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("subject_id", id).Info("session created")
//	logger.SetLevel(observability.DebugLevel) // applies to derived loggers too
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordSync(elapsed, "")            // success
//	metrics.RecordSync(elapsed, "store_error") // failure
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// When OTLP export is enabled, MirrorTo forwards sync and trigger
// measurements to OpenTelemetry instruments as well.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// The database is required for readiness. Redis only degrades it.
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, 30*time.Second)
//	sm.Register("database", func(ctx context.Context) error { return db.Close() })
//	sm.Register("http", server.Shutdown)
//	sm.WaitForShutdown(ctx)
//
// Steps run in reverse registration order.
package observability
