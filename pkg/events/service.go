package events

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/visibility"
)

var tracer = otel.Tracer("campus/events")

// GroupLookup resolves the group hosting an event
type GroupLookup interface {
	Get(ctx context.Context, id int64, active storage.ActiveFilter) (*groups.Group, error)
}

// Service implements event and comment operations
type Service struct {
	store  *Store
	groups GroupLookup
	policy *visibility.Policy
}

// NewService creates an event service
func NewService(db *sql.DB, groupLookup GroupLookup, policy *visibility.Policy) *Service {
	return &Service{
		store:  NewStore(db),
		groups: groupLookup,
		policy: policy,
	}
}

// Create schedules an event for a group of the organization.
// Requires events.create on the group.
func (s *Service) Create(ctx context.Context, perms *permissions.Resolver, req CreateRequest) (*Event, error) {
	ctx, span := tracer.Start(ctx, "events.Create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("organization.id", req.OrganizationID),
		attribute.Int64("group.id", req.GroupID),
	)

	req.Name = strings.TrimSpace(req.Name)
	var missing []string
	if req.GroupID <= 0 {
		missing = append(missing, "rso_id")
	}
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if !req.Privacy.Valid() {
		missing = append(missing, "privacy")
	}
	if req.StartTime.IsZero() {
		missing = append(missing, "start_time")
	}
	if req.EndTime.IsZero() || req.EndTime.Before(req.StartTime) {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return nil, apierrors.Missing(missing...)
	}

	if _, err := s.group(ctx, req.OrganizationID, req.GroupID); err != nil {
		return nil, err
	}
	if !perms.Allowed(roles.ActionEventsCreate, permissions.ScopeGroup, req.GroupID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}

	e := &Event{
		OrganizationID: req.OrganizationID,
		GroupID:        req.GroupID,
		CreatedByID:    perms.UserID(),
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.TrimSpace(req.Category),
		Privacy:        req.Privacy,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}
	return e, nil
}

// List returns the events of an organization visible to the caller. Members
// of a group additionally see that group's RSO events.
func (s *Service) List(ctx context.Context, perms *permissions.Resolver, filter ListFilter) ([]*Event, error) {
	ctx, span := tracer.Start(ctx, "events.List")
	defer span.End()

	if filter.GroupID != nil {
		if _, err := s.group(ctx, filter.OrganizationID, *filter.GroupID); err != nil {
			return nil, err
		}
	}

	minimum, err := s.policy.MinimumTier(ctx, filter.OrganizationID, perms.UserID(), filter.GroupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "visibility probe failed")
		return nil, err
	}

	var memberGroups []int64
	if filter.GroupID == nil && minimum > roles.PrivacyRSO {
		memberGroups = perms.GroupIDs()
	}
	return s.store.List(ctx, filter, minimum, memberGroups)
}

// Show returns one event if the caller may see it
func (s *Service) Show(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) (*Event, error) {
	ctx, span := tracer.Start(ctx, "events.Show")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", eventID))

	e, err := s.find(ctx, organizationID, eventID)
	if err != nil {
		return nil, err
	}
	minimum, err := s.policy.MinimumTier(ctx, organizationID, perms.UserID(), &e.GroupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "visibility probe failed")
		return nil, err
	}
	if !visibility.Visible(e.Privacy, minimum) {
		return nil, apierrors.ErrEventPrivacyRestriction
	}
	return e, nil
}

// Destroy soft-deletes an event. Requires events.destroy on its group.
func (s *Service) Destroy(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) error {
	e, err := s.find(ctx, organizationID, eventID)
	if err != nil {
		return err
	}
	if !perms.Allowed(roles.ActionEventsDestroy, permissions.ScopeGroup, e.GroupID) {
		return apierrors.ErrInvalidPermissionForAction
	}
	if err := s.store.Deactivate(ctx, e.ID, perms.UserID(), storage.Now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apierrors.ErrNoEventInRso
		}
		return err
	}
	return nil
}

// SetImage records the uploaded image of an event. Requires events.create on
// its group.
func (s *Service) SetImage(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64, imageURL string) (*Event, error) {
	e, err := s.find(ctx, organizationID, eventID)
	if err != nil {
		return nil, err
	}
	if !perms.Allowed(roles.ActionEventsCreate, permissions.ScopeGroup, e.GroupID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}
	if err := s.store.SetImage(ctx, e.ID, imageURL); err != nil {
		return nil, err
	}
	e.ImageURL = &imageURL
	return e, nil
}

func (s *Service) find(ctx context.Context, organizationID, eventID int64) (*Event, error) {
	e, err := s.store.Get(ctx, organizationID, eventID, storage.ActiveOnly)
	if errors.Is(err, ErrNotFound) {
		return nil, apierrors.ErrNoEventInRso
	}
	return e, err
}

func (s *Service) group(ctx context.Context, organizationID, groupID int64) (*groups.Group, error) {
	g, err := s.groups.Get(ctx, groupID, storage.ActiveOnly)
	if errors.Is(err, groups.ErrNotFound) || (err == nil && g.OrganizationID != organizationID) {
		return nil, apierrors.ErrNoRsoInUniversity
	}
	return g, err
}
