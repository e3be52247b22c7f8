package groups

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Service is the group API used by the HTTP layer
type Service struct {
	store       *Store
	memberships *membership.SQLStore
	workflow    *Workflow
	cascade     *CascadeCoordinator
}

// NewService wires the group store, workflow and cascade coordinator
func NewService(db *sql.DB, memberships *membership.SQLStore, users UserLookup) *Service {
	store := NewStore(db)
	return &Service{
		store:       store,
		memberships: memberships,
		workflow:    NewWorkflow(db, store, memberships, users),
		cascade:     NewCascadeCoordinator(db, store, memberships),
	}
}

// Create runs the group-creation workflow
func (s *Service) Create(ctx context.Context, perms *permissions.Resolver, req CreateRequest) (*Created, error) {
	return s.workflow.Create(ctx, perms, req)
}

// Get returns an active group of the organization with its active roster
func (s *Service) Get(ctx context.Context, organizationID, groupID int64) (*Detail, error) {
	g, err := s.find(ctx, organizationID, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.memberships.Find(ctx, membership.Filter{GroupID: &g.ID})
	if err != nil {
		return nil, err
	}
	return &Detail{Group: g, Members: members}, nil
}

// List returns the groups of an organization whose name contains name
func (s *Service) List(ctx context.Context, organizationID int64, name string, active storage.ActiveFilter) ([]*Group, error) {
	return s.store.List(ctx, Filter{OrganizationID: &organizationID, Name: name, Active: active})
}

// Update changes name or description. Requires rso.edit on the group.
func (s *Service) Update(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64, req UpdateRequest) (*Group, error) {
	g, err := s.find(ctx, organizationID, groupID)
	if err != nil {
		return nil, err
	}
	if !perms.Allowed(roles.ActionRsoEdit, permissions.ScopeGroup, g.ID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apierrors.Missing("name")
		}
		g.Name = name
	}
	if req.Description != nil {
		g.Description = strings.TrimSpace(*req.Description)
	}
	if err := s.store.UpdateDetails(ctx, g); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apierrors.ErrNoRsoInUniversity
		}
		return nil, err
	}
	return g, nil
}

// Deactivate soft-deletes the group and cascades to its memberships. Requires
// rso.destroy on the group.
func (s *Service) Deactivate(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64) (*CascadeResult, error) {
	g, err := s.find(ctx, organizationID, groupID)
	if err != nil {
		return nil, err
	}
	if !perms.Allowed(roles.ActionRsoDestroy, permissions.ScopeGroup, g.ID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}
	return s.cascade.Deactivate(ctx, g.ID, perms.UserID())
}

// Cascade exposes the coordinator for callers that have already authorized
// the deactivation
func (s *Service) Cascade() *CascadeCoordinator {
	return s.cascade
}

func (s *Service) find(ctx context.Context, organizationID, groupID int64) (*Group, error) {
	if organizationID <= 0 || groupID <= 0 {
		return nil, apierrors.Missing("universityId", "id")
	}
	g, err := s.store.Get(ctx, groupID, storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrNoRsoInUniversity
	}
	if err != nil {
		return nil, err
	}
	if g.OrganizationID != organizationID {
		return nil, apierrors.ErrNoRsoInUniversity
	}
	return g, nil
}
