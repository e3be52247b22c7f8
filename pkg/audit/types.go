package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthSignup      EventType = "auth.signup"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Data mutation events
	EventTypeUniversityCreate     EventType = "data.university_create"
	EventTypeUniversityUpdate     EventType = "data.university_update"
	EventTypeUniversityDeactivate EventType = "data.university_deactivate"
	EventTypeRsoCreate            EventType = "data.rso_create"
	EventTypeRsoUpdate            EventType = "data.rso_update"
	EventTypeRsoDeactivate        EventType = "data.rso_deactivate"
	EventTypeEventCreate          EventType = "data.event_create"
	EventTypeEventDestroy         EventType = "data.event_destroy"
	EventTypeSubscriptionCreate   EventType = "data.subscription_create"
	EventTypeSubscriptionDestroy  EventType = "data.subscription_destroy"
	EventTypeUserUpdate           EventType = "data.user_update"

	// HTTP requests captured by Middleware
	EventTypeHTTPRequest EventType = "http.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeSession      ResourceType = "session"
	ResourceTypeUniversity   ResourceType = "university"
	ResourceTypeRso          ResourceType = "rso"
	ResourceTypeEvent        ResourceType = "event"
	ResourceTypeComment      ResourceType = "comment"
	ResourceTypeSubscription ResourceType = "subscription"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID         *int64 `json:"user_id,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID         *int64
	OrganizationID *int64

	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// DefaultRetention is how long audit events are kept
const DefaultRetention = 90 * 24 * time.Hour
