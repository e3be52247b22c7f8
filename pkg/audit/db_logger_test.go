package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/storage"
)

func newTestLogger(t *testing.T) *DBLogger {
	t.Helper()
	logger, err := NewDBLogger(storage.NewTestDB(t))
	require.NoError(t, err)
	return logger
}

func TestNewDBLogger(t *testing.T) {
	logger, err := NewDBLogger(nil)
	assert.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "database connection is required")
}

func TestDBLogger_LogAndSearch(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	userID, orgID := int64(3), int64(1)
	require.NoError(t, logger.LogAuthentication(ctx, EventTypeAuthLogin, &userID, EventStatusSuccess, "login"))
	require.NoError(t, logger.LogAuthentication(ctx, EventTypeAuthLoginFailed, nil, EventStatusFailure, "bad password"))
	require.NoError(t, logger.LogMutation(ctx, EventTypeRsoDeactivate, &userID, &orgID, ResourceTypeRso, "9",
		map[string]interface{}{"memberships_cascaded": 4}))
	require.NoError(t, logger.LogAuthorization(ctx, &userID, ResourceTypeEvent, "12", "events.destroy"))

	t.Run("all newest first", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{})
		require.NoError(t, err)
		require.Len(t, events, 4)
		assert.Equal(t, EventTypeAuthzAccessDenied, events[0].EventType)
		assert.Equal(t, EventTypeAuthLogin, events[3].EventType)
	})

	t.Run("by user", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{UserID: &userID})
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("by event types", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{EventTypes: []EventType{EventTypeAuthLogin, EventTypeAuthLoginFailed}})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("mutation metadata", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{OrganizationID: &orgID, ResourceType: ResourceTypeRso})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "9", events[0].ResourceID)
		assert.Equal(t, float64(4), events[0].Metadata["memberships_cascaded"])
	})

	t.Run("denied status", func(t *testing.T) {
		status := EventStatusDenied
		events, err := logger.Search(ctx, SearchFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "12", events[0].ResourceID)
	})

	t.Run("pagination", func(t *testing.T) {
		events, err := logger.Search(ctx, SearchFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventTypeRsoDeactivate, events[0].EventType)
	})
}

func TestDBLogger_LogHTTPRequest(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	r := httptest.NewRequest("DELETE", "/api/university/1/rso/2", nil)
	ctx, _ = withRequestInfo(ctx, r)
	SetActor(ctx, 11)

	require.NoError(t, logger.LogHTTPRequest(ctx, r, 403, 25*time.Millisecond))

	events, err := logger.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, EventTypeHTTPRequest, e.EventType)
	assert.Equal(t, EventStatusDenied, e.Status)
	assert.Equal(t, 403, e.StatusCode)
	assert.Equal(t, "DELETE", e.Method)
	assert.Equal(t, "/api/university/1/rso/2", e.Path)
	require.NotNil(t, e.UserID)
	assert.Equal(t, int64(11), *e.UserID)
	assert.Equal(t, float64(25), e.Metadata["duration_ms"])
}

func TestDBLogger_Cleanup(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	old := &AuditEvent{Timestamp: storage.Now().Add(-100 * 24 * time.Hour), EventType: EventTypeAuthLogin, Status: EventStatusSuccess}
	fresh := &AuditEvent{Timestamp: storage.Now(), EventType: EventTypeAuthLogin, Status: EventStatusSuccess}
	require.NoError(t, logger.Log(ctx, old))
	require.NoError(t, logger.Log(ctx, fresh))

	n, err := logger.Cleanup(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	events, err := logger.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fresh.ID, events[0].ID)
}

func TestDBLogger_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))
	err = logger.Log(ctx, &AuditEvent{EventType: EventTypeAuthLogin, Status: EventStatusSuccess})
	assert.ErrorContains(t, err, "failed to insert audit log")

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	_, err = logger.Search(ctx, SearchFilter{})
	assert.ErrorContains(t, err, "failed to search audit logs")

	mock.ExpectExec("DELETE FROM audit_logs").WillReturnError(errors.New("connection reset"))
	_, err = logger.Cleanup(ctx, time.Hour)
	assert.ErrorContains(t, err, "failed to cleanup audit logs")

	err = logger.Log(ctx, &AuditEvent{Metadata: map[string]interface{}{"bad": make(chan int)}})
	assert.ErrorContains(t, err, "failed to marshal metadata")

	assert.NoError(t, mock.ExpectationsWereMet())
}
