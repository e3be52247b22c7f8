// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown for campus.
//
// # Logging
//
// Logger wraps logrus with a JSON formatter. Derived loggers share a level, so
// a config reload can call SetLevel once:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("university_id", id).Info("university created")
//
// LoggingMiddleware stores the logger in the request context. FromContext
// returns it with request_id, user_id and trace ids attached.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Besides HTTP, cache and pool metrics, Metrics carries the domain counters:
// permission resolutions, authorization denials, group creations, cascades,
// visibility tiers and login attempts.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
