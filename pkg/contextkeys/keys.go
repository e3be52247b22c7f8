// Package contextkeys defines every request context key in one place so key
// usage is discoverable and a typo is a compile error.
//
// Values are stored as interface{} where the concrete type lives in a
// package that imports this one (auth, observability, audit). Those packages
// own the typed accessors:
//
//	authCtx := auth.FromContext(ctx)
//	perms := permissions.FromContext(ctx)
package contextkeys

import "context"

// Key is the type of all campus context keys
type Key string

const (
	// AuthKey holds *auth.AuthContext, set by middleware.AuthMiddleware
	AuthKey Key = "auth_context"

	// PermissionsKey holds the request's *permissions.Resolver, set by
	// middleware.PermissionsMiddleware
	PermissionsKey Key = "permissions"

	// RequestIDKey holds the request id string, set by middleware.RequestID
	RequestIDKey Key = "request_id"

	// UserIDKey holds the authenticated user id as a string, for log fields
	UserIDKey Key = "user_id"

	// LoggerKey holds the request-scoped *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey holds the audit.Logger installed by audit.Middleware
	AuditLoggerKey Key = "audit_logger"

	// RequestStartTimeKey holds the time.Time the audit middleware saw the request
	RequestStartTimeKey Key = "request_start_time"

	// AccessLogKey holds the mutable fields of the access log line. The
	// logging middleware creates them and the auth middleware fills in the
	// user.
	AccessLogKey Key = "access_log"
)

func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID returns the request id, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetUserID returns the user id log field, or ""
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
