package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/campus/pkg/contextkeys"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// LogAuthentication logs a login, logout or signup
	LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error

	// LogAuthorization logs a denied action
	LogAuthorization(ctx context.Context, userID *int64, resourceType ResourceType, resourceID string, message string) error

	// LogMutation logs a successful create, update or delete
	LogMutation(ctx context.Context, eventType EventType, userID, organizationID *int64, resourceType ResourceType, resourceID string, metadata map[string]interface{}) error

	// LogHTTPRequest logs an HTTP request (for middleware)
	LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration) error

	// Close flushes any buffered events
	Close() error
}

type contextKey string

const requestInfoKey contextKey = "audit_request_info"

// requestInfo is shared by pointer so middleware further down the chain can
// attach the authenticated user after the audit middleware ran.
type requestInfo struct {
	userID    *int64
	ipAddress string
	userAgent string
	method    string
	path      string
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// WithRequestStartTime adds the request start time to the context
func WithRequestStartTime(ctx context.Context, t time.Time) context.Context {
	return contextkeys.WithRequestStartTime(ctx, t)
}

// GetRequestStartTime retrieves the request start time from context
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextkeys.RequestStartTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func withRequestInfo(ctx context.Context, r *http.Request) (context.Context, *requestInfo) {
	info := &requestInfo{
		ipAddress: getClientIP(r),
		userAgent: r.UserAgent(),
		method:    r.Method,
		path:      r.URL.Path,
	}
	return context.WithValue(ctx, requestInfoKey, info), info
}

// SetActor records the authenticated user for every event of this request
func SetActor(ctx context.Context, userID int64) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = &userID
	}
}

// noOpLogger is a logger that does nothing (used when no logger is configured)
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *AuditEvent) error {
	return nil
}

func (l *noOpLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	return nil
}

func (l *noOpLogger) LogAuthorization(ctx context.Context, userID *int64, resourceType ResourceType, resourceID string, message string) error {
	return nil
}

func (l *noOpLogger) LogMutation(ctx context.Context, eventType EventType, userID, organizationID *int64, resourceType ResourceType, resourceID string, metadata map[string]interface{}) error {
	return nil
}

func (l *noOpLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration) error {
	return nil
}

func (l *noOpLogger) Close() error {
	return nil
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// buildBaseEvent creates a base audit event with common fields populated
func buildBaseEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: storage.Now(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		event.UserID = info.userID
		event.IPAddress = info.ipAddress
		event.UserAgent = info.userAgent
		event.Method = info.method
		event.Path = info.path
	}
	return event
}

// LogSuccess logs a successful event with a message
func LogSuccess(ctx context.Context, eventType EventType, message string, metadata map[string]interface{}) error {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	event.Message = message
	if metadata != nil {
		event.Metadata = metadata
	}
	return FromContext(ctx).Log(ctx, event)
}

// LogFailure logs a failed event with an error
func LogFailure(ctx context.Context, eventType EventType, message string, err error) error {
	event := buildBaseEvent(ctx, eventType, EventStatusFailure)
	event.Message = message
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return FromContext(ctx).Log(ctx, event)
}

// LogDenied logs an access denied event for the current request's user
func LogDenied(ctx context.Context, resourceType ResourceType, resourceID string, reason string) error {
	event := buildBaseEvent(ctx, EventTypeAuthzAccessDenied, EventStatusDenied)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = fmt.Sprintf("Access denied: %s", reason)
	return FromContext(ctx).Log(ctx, event)
}
