// Package audit records security-relevant activity in the audit_logs table.
//
// # Overview
//
// Logins, signups, university, group, event and subscription mutations, and
// authorization denials are each written as one AuditEvent. Events carry the
// request id, client address and authenticated user captured by Middleware.
//
// # Usage Example
//
// Log a mutation from a handler:
//
//	audit.FromContext(ctx).LogMutation(ctx, audit.EventTypeRsoDeactivate,
//		&userID, &orgID, audit.ResourceTypeRso, strconv.FormatInt(id, 10),
//		map[string]interface{}{"memberships_cascaded": n})
//
// Log a denial:
//
//	audit.LogDenied(ctx, audit.ResourceTypeEvent, "42", "events.destroy")
//
// When no logger is installed FromContext returns a no-op logger, so callers
// never need a nil check.
//
// # Retention
//
// DBLogger.Cleanup deletes events older than a retention window. The janitor
// binary schedules it.
package audit
