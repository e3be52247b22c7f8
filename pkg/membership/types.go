package membership

import (
	"context"
	"time"

	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Membership records a user's tier in an organization or in one of its groups
type Membership struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	OrganizationID int64      `json:"organization_id"`
	GroupID        *int64     `json:"group_id,omitempty"`
	Tier           roles.Tier `json:"tier"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	InactiveAt     *time.Time `json:"inactive_at,omitempty"`
	InactiveByID   *int64     `json:"inactive_by_id,omitempty"`
}

// IsOrganizationLevel reports whether m grants standing in the organization itself
func (m *Membership) IsOrganizationLevel() bool {
	return m.GroupID == nil
}

// IsActive reports whether m has not been deactivated
func (m *Membership) IsActive() bool {
	return m.InactiveAt == nil
}

// Level restricts a Filter to organization-level or group-level rows
type Level int

const (
	LevelAny Level = iota
	LevelOrganization
	LevelGroup
)

// Filter selects memberships. Nil fields are unconstrained.
type Filter struct {
	UserID         *int64
	OrganizationID *int64
	GroupID        *int64
	ExcludeID      *int64
	Level          Level
	Active         storage.ActiveFilter
}

func (f Filter) conditions() *storage.Conditions {
	c := &storage.Conditions{}
	if f.UserID != nil {
		c.Eq("user_id", *f.UserID)
	}
	if f.OrganizationID != nil {
		c.Eq("organization_id", *f.OrganizationID)
	}
	if f.GroupID != nil {
		c.Eq("group_id", *f.GroupID)
	}
	if f.ExcludeID != nil {
		c.NotEq("id", *f.ExcludeID)
	}
	switch f.Level {
	case LevelOrganization:
		c.Raw("group_id IS NULL")
	case LevelGroup:
		c.Raw("group_id IS NOT NULL")
	}
	f.Active.Apply(c, "inactive_at")
	return c
}

// Loader loads the active memberships of a user
type Loader interface {
	FindActiveByUser(ctx context.Context, userID int64) ([]*Membership, error)
}

// Counter counts active memberships matching a filter
type Counter interface {
	CountActive(ctx context.Context, filter Filter) (int, error)
}

// Store is the membership system of record
type Store interface {
	Loader
	Counter
	Find(ctx context.Context, filter Filter) ([]*Membership, error)
	Get(ctx context.Context, id int64) (*Membership, error)
	Create(ctx context.Context, m *Membership) (*Membership, error)
	Update(ctx context.Context, m *Membership) error
	Deactivate(ctx context.Context, membershipID, actorID int64) error
}
