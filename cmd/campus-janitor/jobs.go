package main

import (
	"context"
	"time"

	"github.com/platinummonkey/campus/pkg/observability"
)

type sessionCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type auditCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type janitor struct {
	sessions  sessionCleaner
	audit     auditCleaner
	retention time.Duration
	logger    *observability.Logger
}

func (j *janitor) cleanSessions(ctx context.Context) error {
	n, err := j.sessions.CleanupExpired(ctx, time.Now())
	if err != nil {
		j.logger.WithError(err).Error("Session cleanup failed")
		return err
	}
	j.logger.WithField("deleted", n).Info("Expired sessions removed")
	return nil
}

func (j *janitor) cleanAudit(ctx context.Context) error {
	if j.retention <= 0 {
		j.logger.Debug("Audit retention disabled")
		return nil
	}
	n, err := j.audit.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.WithError(err).Error("Audit cleanup failed")
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"deleted":   n,
		"retention": j.retention.String(),
	}).Info("Old audit events removed")
	return nil
}
