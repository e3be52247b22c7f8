package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/config"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/storage"
)

var (
	configFile = flag.String("config", os.Getenv("CAMPUS_CONFIG_FILE"), "Path to a YAML config file")
	runOnce    = flag.Bool("run-once", false, "Run every job once and exit")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger.SetLevel(cfg.Observability.Level())

	conns, err := storage.Open(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer conns.Close()

	db := conns.Primary()
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("Failed to open audit log")
		os.Exit(1)
	}
	defer auditLogger.Close()

	j := &janitor{
		sessions:  auth.NewSessionStore(db),
		audit:     auditLogger,
		retention: cfg.Janitor.AuditRetention,
		logger:    logger,
	}

	if *runOnce {
		ctx := context.Background()
		sessionsErr := j.cleanSessions(ctx)
		auditErr := j.cleanAudit(ctx)
		if sessionsErr != nil || auditErr != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Janitor.SessionCleanupSchedule, func() {
		_ = j.cleanSessions(context.Background())
	}); err != nil {
		logger.WithError(err).Error("Failed to schedule session cleanup")
		os.Exit(1)
	}
	if _, err := c.AddFunc(cfg.Janitor.AuditCleanupSchedule, func() {
		_ = j.cleanAudit(context.Background())
	}); err != nil {
		logger.WithError(err).Error("Failed to schedule audit cleanup")
		os.Exit(1)
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"sessions": cfg.Janitor.SessionCleanupSchedule,
		"audit":    cfg.Janitor.AuditCleanupSchedule,
	}).Info("campus-janitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down gracefully...")

	<-c.Stop().Done()
	logger.Info("campus-janitor stopped")
}
