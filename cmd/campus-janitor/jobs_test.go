package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/observability"
)

type fakeSessions struct {
	deleted int64
	err     error
	calls   int
}

func (f *fakeSessions) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeAudit struct {
	retention time.Duration
	err       error
}

func (f *fakeAudit) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 3, f.err
}

func newJanitor(sessions *fakeSessions, audit *fakeAudit, retention time.Duration) (*janitor, *bytes.Buffer) {
	var buf bytes.Buffer
	return &janitor{
		sessions:  sessions,
		audit:     audit,
		retention: retention,
		logger:    observability.NewLogger(observability.DebugLevel, &buf),
	}, &buf
}

func TestCleanSessions(t *testing.T) {
	sessions := &fakeSessions{deleted: 7}
	j, buf := newJanitor(sessions, &fakeAudit{}, time.Hour)

	require.NoError(t, j.cleanSessions(context.Background()))
	assert.Equal(t, 1, sessions.calls)
	assert.Contains(t, buf.String(), "Expired sessions removed")

	sessions.err = errors.New("connection reset")
	assert.Error(t, j.cleanSessions(context.Background()))
	assert.Contains(t, buf.String(), "connection reset")
}

func TestCleanAudit(t *testing.T) {
	t.Run("uses retention", func(t *testing.T) {
		audit := &fakeAudit{}
		j, _ := newJanitor(&fakeSessions{}, audit, 90*24*time.Hour)

		require.NoError(t, j.cleanAudit(context.Background()))
		assert.Equal(t, 90*24*time.Hour, audit.retention)
	})

	t.Run("disabled", func(t *testing.T) {
		audit := &fakeAudit{}
		j, _ := newJanitor(&fakeSessions{}, audit, 0)

		require.NoError(t, j.cleanAudit(context.Background()))
		assert.Zero(t, audit.retention)
	})

	t.Run("failure", func(t *testing.T) {
		j, _ := newJanitor(&fakeSessions{}, &fakeAudit{err: errors.New("boom")}, time.Hour)
		assert.Error(t, j.cleanAudit(context.Background()))
	})
}
