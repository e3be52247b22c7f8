package events

import (
	"context"
	"errors"
	"strings"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// CreateComment adds a comment to a visible event. Requires comment.create
// on the organization.
func (s *Service) CreateComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64, message string) (*Comment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierrors.Missing("message")
	}
	if !perms.Allowed(roles.ActionCommentCreate, permissions.ScopeOrganization, organizationID) {
		return nil, apierrors.ErrInvalidPermissionForAction
	}
	e, err := s.Show(ctx, perms, organizationID, eventID)
	if err != nil {
		return nil, err
	}

	c := &Comment{EventID: e.ID, CreatedByID: perms.UserID(), Message: message}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns the active comments of a visible event
func (s *Service) ListComments(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) ([]*Comment, error) {
	e, err := s.Show(ctx, perms, organizationID, eventID)
	if err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, e.ID, storage.ActiveOnly)
}

// UpdateComment rewrites a comment. Only its author may do so.
func (s *Service) UpdateComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID, commentID int64, message string) (*Comment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierrors.Missing("message")
	}
	c, err := s.ownComment(ctx, perms, organizationID, eventID, commentID)
	if err != nil {
		return nil, err
	}
	c.Message = message
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DestroyComment soft-deletes a comment. Only its author may do so.
func (s *Service) DestroyComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID, commentID int64) error {
	c, err := s.ownComment(ctx, perms, organizationID, eventID, commentID)
	if err != nil {
		return err
	}
	if err := s.store.DeactivateComment(ctx, c.ID, storage.Now()); err != nil {
		if errors.Is(err, ErrCommentNotFound) {
			return apierrors.ErrCommentNotFound
		}
		return err
	}
	return nil
}

// ownComment loads a comment of a visible event written by the caller
func (s *Service) ownComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID, commentID int64) (*Comment, error) {
	if _, err := s.Show(ctx, perms, organizationID, eventID); err != nil {
		return nil, err
	}
	c, err := s.store.GetComment(ctx, eventID, commentID)
	if errors.Is(err, ErrCommentNotFound) {
		return nil, apierrors.ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.CreatedByID != perms.UserID() {
		return nil, apierrors.ErrInvalidPermissionForAction
	}
	return c, nil
}
