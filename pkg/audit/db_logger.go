package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/campus/pkg/storage"
)

// DBLogger implements audit logging to the audit_logs table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by storage.RunMigrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = storage.Now()
	}

	query := `
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			user_id, organization_id,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			method, path, status_code,
			message, error_message, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		storage.NullInt64(event.UserID), storage.NullInt64(event.OrganizationID),
		string(event.ResourceType), event.ResourceID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Method, event.Path, event.StatusCode,
		event.Message, event.ErrorMessage, metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// LogAuthentication logs a login, logout or signup
func (l *DBLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	event.ResourceType = ResourceTypeUser
	event.Message = message
	if userID != nil {
		event.UserID = userID
		event.ResourceID = strconv.FormatInt(*userID, 10)
	}
	return l.Log(ctx, event)
}

// LogAuthorization logs a denied action
func (l *DBLogger) LogAuthorization(ctx context.Context, userID *int64, resourceType ResourceType, resourceID string, message string) error {
	event := buildBaseEvent(ctx, EventTypeAuthzAccessDenied, EventStatusDenied)
	if userID != nil {
		event.UserID = userID
	}
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return l.Log(ctx, event)
}

// LogMutation logs a successful create, update or delete
func (l *DBLogger) LogMutation(ctx context.Context, eventType EventType, userID, organizationID *int64, resourceType ResourceType, resourceID string, metadata map[string]interface{}) error {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	if userID != nil {
		event.UserID = userID
	}
	event.OrganizationID = organizationID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	return l.Log(ctx, event)
}

// LogHTTPRequest logs an HTTP request
func (l *DBLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration) error {
	status := EventStatusSuccess
	if statusCode >= 400 {
		status = EventStatusFailure
	}
	if statusCode == http.StatusForbidden {
		status = EventStatusDenied
	}

	event := buildBaseEvent(ctx, EventTypeHTTPRequest, status)
	event.StatusCode = statusCode
	event.Metadata["duration_ms"] = duration.Milliseconds()
	return l.Log(ctx, event)
}

// Search searches audit logs based on filters, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	c := &storage.Conditions{}
	if filter.StartTime != nil {
		c.Raw("timestamp >= " + c.Arg(filter.StartTime.UTC()))
	}
	if filter.EndTime != nil {
		c.Raw("timestamp <= " + c.Arg(filter.EndTime.UTC()))
	}
	if filter.UserID != nil {
		c.Eq("user_id", *filter.UserID)
	}
	if filter.OrganizationID != nil {
		c.Eq("organization_id", *filter.OrganizationID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = c.Arg(string(et))
		}
		c.Raw("event_type IN (" + strings.Join(placeholders, ", ") + ")")
	}
	if filter.Status != nil {
		c.Eq("status", string(*filter.Status))
	}
	if filter.ResourceType != "" {
		c.Eq("resource_type", string(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		c.Eq("resource_id", filter.ResourceID)
	}

	query := `
		SELECT
			id, timestamp, event_type, status,
			user_id, organization_id,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			method, path, status_code,
			message, error_message, metadata
		FROM audit_logs` + c.Where() + ` ORDER BY timestamp DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + c.Arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + c.Arg(filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		var (
			event           AuditEvent
			eventType       string
			status          string
			resourceType    sql.NullString
			userID, orgID   sql.NullInt64
			resourceID      sql.NullString
			ip, ua, reqID   sql.NullString
			method, path    sql.NullString
			statusCode      sql.NullInt64
			message, errMsg sql.NullString
			metadata        sql.NullString
		)
		err := rows.Scan(
			&event.ID, &event.Timestamp, &eventType, &status,
			&userID, &orgID,
			&resourceType, &resourceID,
			&ip, &ua, &reqID,
			&method, &path, &statusCode,
			&message, &errMsg, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		event.Timestamp = event.Timestamp.UTC()
		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		event.UserID = storage.Int64Ptr(userID)
		event.OrganizationID = storage.Int64Ptr(orgID)
		event.ResourceType = ResourceType(resourceType.String)
		event.ResourceID = resourceID.String
		event.IPAddress = ip.String
		event.UserAgent = ua.String
		event.RequestID = reqID.String
		event.Method = method.String
		event.Path = path.String
		event.StatusCode = int(statusCode.Int64)
		event.Message = message.String
		event.ErrorMessage = errMsg.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return events, nil
}

// Cleanup removes audit logs older than retention
func (l *DBLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := storage.Now().Add(-retention)
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database logger
func (l *DBLogger) Close() error {
	// The connection is shared and closed by its owner
	return nil
}
