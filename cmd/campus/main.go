package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/campus/pkg/api"
	"github.com/platinummonkey/campus/pkg/async"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/config"
	"github.com/platinummonkey/campus/pkg/events"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/media"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/orgs"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/subscriptions"
	"github.com/platinummonkey/campus/pkg/users"
	"github.com/platinummonkey/campus/pkg/visibility"
)

var version = "dev"

func main() {
	configFile := flag.String("config", os.Getenv("CAMPUS_CONFIG_FILE"), "Path to a YAML config file")
	migrateOnly := flag.Bool("migrate-only", false, "Apply migrations and exit")
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger.SetLevel(cfg.Observability.Level())

	if err := run(cfg, *configFile, *migrateOnly, logger); err != nil {
		logger.WithError(err).Error("campus exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, configFile string, migrateOnly bool, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	db := conns.Primary()

	if cfg.Server.RunMigrations || migrateOnly {
		if err := storage.RunMigrations(ctx, db, conns.Dialect()); err != nil {
			conns.Close()
			return err
		}
		logger.Info("Database migrations applied")
	}
	if migrateOnly {
		return conns.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if rdb, err = storage.NewRedisClient(cfg.Redis); err != nil {
			conns.Close()
			return err
		}
		logger.WithField("url", cfg.Redis.URL).Info("Redis connected")
	}

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry disabled after init failure")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}

	services, sessions := wireServices(cfg, db, rdb, metrics)

	var images media.Store
	if cfg.Media.Enabled {
		store, err := media.NewS3Store(ctx, media.Config{
			Endpoint:      cfg.Media.Endpoint,
			Region:        cfg.Media.Region,
			Bucket:        cfg.Media.Bucket,
			AccessKey:     cfg.Media.AccessKey,
			SecretKey:     cfg.Media.SecretKey,
			UsePathStyle:  cfg.Media.UsePathStyle,
			PublicBaseURL: cfg.Media.PublicBaseURL,
			MaxBytes:      cfg.Media.MaxUploadBytes,
		})
		if err != nil {
			return err
		}
		images = store
		logger.WithField("bucket", cfg.Media.Bucket).Info("Image uploads enabled")
	}

	userLimiter, anonLimiter, loginLimiter := limiters(ctx, cfg, rdb)

	server := api.NewServer(services, api.Options{
		Logger:           logger,
		Metrics:          metrics,
		Audit:            auditLogger,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		SessionTTL:       cfg.Auth.SessionTTL,
		UserLimiter:      userLimiter,
		AnonymousLimiter: anonLimiter,
		LoginLimiter:     loginLimiter,
		Images:           images,
		MaxUploadBytes:   cfg.Media.MaxUploadBytes,
		Tracing:          otelProviders != nil,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, rdb, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.Register("database", func(context.Context) error { return conns.Close() })
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })
	if otelProviders != nil {
		shutdown.Register("otel", otelProviders.Shutdown)
	}

	startBackground(ctx, logger, conns, sessions, metrics)
	if configFile != "" {
		go watchConfig(ctx, configFile, logger)
	}

	for _, srv := range []*http.Server{httpServer, healthServer} {
		srv := srv
		go func() {
			logger.WithField("addr", srv.Addr).Info("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", srv.Addr).Error("Server failed")
				cancel()
			}
		}()
	}

	if err := shutdown.WaitForSignal(ctx); err != nil {
		logger.WithError(err).Warn("Shutdown reported errors")
	}
	return nil
}

// wireServices builds the domain services over db. The session store is
// returned separately for background pruning.
func wireServices(cfg *config.Config, db *sql.DB, rdb *redis.Client, metrics *observability.Metrics) (api.Services, *auth.SessionStore) {
	memberships := membership.NewSQLStore(db)
	groupStore := groups.NewStore(db)

	sqlOrgs := orgs.NewSQLService(db, memberships, activeUsers{store: users.NewStore(db)})
	universities := orgs.NewCachedService(sqlOrgs, rdb, orgs.CacheConfig{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
	}).WithObserver(metrics)

	userService := users.NewService(db, memberships, universities, cfg.Auth.BcryptCost)
	policy := visibility.NewPolicy(memberships).WithObserver(metrics)
	sessions := auth.NewSessionStore(db)

	return api.Services{
		Users:         userService,
		Sessions:      sessions,
		Memberships:   memberships,
		Universities:  universities,
		Rsos:          groups.NewService(db, memberships, userService),
		Events:        events.NewService(db, groupStore, policy),
		Subscriptions: subscriptions.NewService(db, groupStore),
	}, sessions
}

// activeUsers resolves university creators straight from the user table,
// since the user service itself depends on universities
type activeUsers struct {
	store *users.Store
}

func (a activeUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	return a.store.Get(ctx, id, storage.ActiveOnly)
}

// limiters shares counters through Redis when available
func limiters(ctx context.Context, cfg *config.Config, rdb *redis.Client) (user, anonymous, login middleware.Limiter) {
	loginConfig := middleware.LoginRateLimitConfig(cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)
	if rdb != nil {
		return middleware.NewDistributedRateLimiter(rdb, middleware.PerUserRateLimitConfig(), "campus:ratelimit:user"),
			middleware.NewDistributedRateLimiter(rdb, middleware.DefaultRateLimitConfig(), "campus:ratelimit:anon"),
			middleware.NewDistributedRateLimiter(rdb, loginConfig, "campus:ratelimit:login")
	}

	local := []*middleware.RateLimiter{
		middleware.NewRateLimiter(middleware.PerUserRateLimitConfig()),
		middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
		middleware.NewRateLimiter(loginConfig),
	}
	for _, l := range local {
		l.StartCleanup(ctx)
	}
	return local[0], local[1], local[2]
}

// startBackground schedules the periodic maintenance of a running server
func startBackground(ctx context.Context, logger *observability.Logger, conns *storage.ConnectionManager, sessions *auth.SessionStore, metrics *observability.Metrics) {
	async.Every(ctx, logger, 15*time.Second, 5*time.Second, "db stats", func(context.Context) error {
		metrics.CollectDBStats(conns.Primary())
		return nil
	})
	async.Every(ctx, logger, 30*time.Second, 10*time.Second, "replica health", func(ctx context.Context) error {
		if removed := conns.RemoveUnhealthyReplicas(ctx); removed > 0 {
			logger.WithField("removed", removed).Warn("Unhealthy read replicas removed")
		}
		return nil
	})
	async.Every(ctx, logger, time.Hour, time.Minute, "session cleanup", func(ctx context.Context) error {
		n, err := sessions.CleanupExpired(ctx, time.Now())
		if err == nil && n > 0 {
			logger.WithField("sessions", n).Info("Expired sessions removed")
		}
		return err
	})
}

// watchConfig applies log level changes without a restart
func watchConfig(ctx context.Context, path string, logger *observability.Logger) {
	err := config.WatchFile(ctx, path,
		func(cfg *config.Config) {
			if level := cfg.Observability.Level(); level != logger.Level() {
				logger.WithField("level", level.String()).Info("Log level changed")
				logger.SetLevel(level)
			}
		},
		func(err error) {
			logger.WithError(err).Warn("Ignoring invalid config change")
		},
	)
	if err != nil {
		logger.WithError(err).Warn("Config watch stopped")
	}
}
