package groups

import (
	"time"

	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Group is a student organization inside a university
type Group struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	CreatedByID    int64      `json:"created_by_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	InactiveAt     *time.Time `json:"inactive_at,omitempty"`
	InactiveByID   *int64     `json:"inactive_by_id,omitempty"`
}

// IsActive reports whether the group has not been deactivated
func (g *Group) IsActive() bool {
	return g.InactiveAt == nil
}

// Filter selects groups
type Filter struct {
	OrganizationID *int64
	IDs            []int64
	Name           string
	Active         storage.ActiveFilter
	Limit          int
	Offset         int
}

func (f Filter) conditions() *storage.Conditions {
	c := &storage.Conditions{}
	if f.OrganizationID != nil {
		c.Eq("organization_id", *f.OrganizationID)
	}
	if f.IDs != nil {
		c.In("id", f.IDs)
	}
	if f.Name != "" {
		c.Like("name", f.Name)
	}
	f.Active.Apply(c, "inactive_at")
	return c
}

// CreateRequest describes a new group and its founding members
type CreateRequest struct {
	CreatorID      int64    `json:"-"`
	CreatorEmail   string   `json:"-"`
	OrganizationID int64    `json:"-"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	MemberEmails   []string `json:"emails"`
}

// UpdateRequest changes a group's descriptive fields. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Created is the result of a successful group creation
type Created struct {
	Group       *Group                   `json:"group"`
	Memberships []*membership.Membership `json:"memberships"`
}

// Detail is a group together with its active roster
type Detail struct {
	*Group
	Members []*membership.Membership `json:"members"`
}
