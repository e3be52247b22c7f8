// Package events manages group events and their comment threads.
//
// Every read is filtered through visibility.Policy: an event whose privacy
// tier is more restricted than the viewer's minimum tier is reported as
// EventPrivacyRestriction, never as missing.
package events

import (
	"time"

	"github.com/platinummonkey/campus/pkg/roles"
)

// Event is a scheduled happening hosted by a group
type Event struct {
	ID             int64             `json:"id"`
	OrganizationID int64             `json:"organization_id"`
	GroupID        int64             `json:"group_id"`
	CreatedByID    int64             `json:"created_by_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Privacy        roles.PrivacyTier `json:"privacy"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	ContactPhone   *string           `json:"contact_phone,omitempty"`
	ContactEmail   *string           `json:"contact_email,omitempty"`
	ImageURL       *string           `json:"image_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	InactiveAt     *time.Time        `json:"inactive_at,omitempty"`
	InactiveByID   *int64            `json:"inactive_by_id,omitempty"`
}

// CreateRequest describes a new event
type CreateRequest struct {
	OrganizationID int64             `json:"-"`
	GroupID        int64             `json:"rso_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Privacy        roles.PrivacyTier `json:"privacy"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	ContactPhone   *string           `json:"contact_phone,omitempty"`
	ContactEmail   *string           `json:"contact_email,omitempty"`
}

// ListFilter selects events of one university
type ListFilter struct {
	OrganizationID int64
	GroupID        *int64
	Category       string
	From           *time.Time
	To             *time.Time
}

// Comment is a message on an event
type Comment struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"event_id"`
	CreatedByID int64      `json:"created_by_id"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	InactiveAt  *time.Time `json:"inactive_at,omitempty"`
}
