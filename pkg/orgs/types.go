package orgs

import (
	"context"
	"time"

	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Organization is a university
type Organization struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	ImageURL     *string    `json:"image_url,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	CreatedByID  int64      `json:"created_by_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	InactiveAt   *time.Time `json:"inactive_at,omitempty"`
	InactiveByID *int64     `json:"inactive_by_id,omitempty"`
}

// IsActive reports whether the university has not been deactivated
func (o *Organization) IsActive() bool {
	return o.InactiveAt == nil
}

// CreateRequest describes a new university
type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// UpdateRequest changes descriptive fields. Nil fields are left unchanged.
type UpdateRequest struct {
	Description *string  `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ListFilter selects universities. With UserID set only universities where
// that user holds active organization-level standing are returned.
type ListFilter struct {
	Name   string
	UserID *int64
	Active storage.ActiveFilter
}

// Service manages universities
type Service interface {
	Create(ctx context.Context, creatorID int64, req CreateRequest) (*Organization, error)
	Get(ctx context.Context, id int64) (*Organization, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Organization, error)
	Update(ctx context.Context, perms *permissions.Resolver, id int64, req UpdateRequest) (*Organization, error)
	Deactivate(ctx context.Context, perms *permissions.Resolver, id int64) (*Organization, error)
	SetImage(ctx context.Context, perms *permissions.Resolver, id int64, imageURL string) (*Organization, error)
}
